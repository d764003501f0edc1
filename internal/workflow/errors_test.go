package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFriendlyMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: msgGeneric},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: msgTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("llm: %w", context.DeadlineExceeded), want: msgTimeout},
		{name: "net timeout", err: timeoutErr{}, want: msgTimeout},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), want: msgRateLimit},
		{name: "rate limit text", err: errors.New("rate limit exceeded, retry later"), want: msgRateLimit},
		{name: "bad api key", err: errors.New("401 Unauthorized: invalid api key"), want: msgAuth},
		{name: "forbidden", err: errors.New("status 403"), want: msgAuth},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: msgConnectivity},
		{name: "dns", err: errors.New("lookup api.example.com: no such host"), want: msgConnectivity},
		{name: "anything else", err: errors.New("unexpected EOF"), want: msgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := friendlyMessage(tt.err); got != tt.want {
				t.Errorf("friendlyMessage(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
