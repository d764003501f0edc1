package workflow

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Friendly messages shown to the user when a node fails. The category is
// derived from the underlying capability error; the raw error never reaches
// the client.
const (
	msgConnectivity = "Unable to connect to the AI service. Please try again in a moment."
	msgRateLimit    = "The service is busy right now. Please wait a moment and try again."
	msgAuth         = "There's a configuration issue with the AI service. Please contact support."
	msgTimeout      = "The request took too long. Please try again."
	msgGeneric      = "Something went wrong. Please try again."
)

// friendlyMessage maps a capability error to a user-facing message by
// category: connectivity, rate limit, auth, timeout, or generic.
func friendlyMessage(err error) string {
	if err == nil {
		return msgGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return msgTimeout
		}
		return msgConnectivity
	}

	// Provider SDKs wrap HTTP failures with the status text in the message;
	// fall back to matching on it.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "rate limit") || strings.Contains(s, "429") || strings.Contains(s, "too many requests"):
		return msgRateLimit
	case strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "api key") ||
		strings.Contains(s, "authentication"):
		return msgAuth
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline"):
		return msgTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "no such host") ||
		strings.Contains(s, "connect:"):
		return msgConnectivity
	default:
		return msgGeneric
	}
}
