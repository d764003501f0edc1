package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRouteTurn(t *testing.T) {
	t.Parallel()

	allowed := routeTurn(true)
	if len(allowed) != 2 {
		t.Fatalf("got %d branches on pass, want 2", len(allowed))
	}
	wantChain := Branch{NodeConversation, NodeSpeech}
	if len(allowed[0]) != 2 || allowed[0][0] != wantChain[0] || allowed[0][1] != wantChain[1] {
		t.Errorf("first branch = %v, want %v", allowed[0], wantChain)
	}
	if len(allowed[1]) != 1 || allowed[1][0] != NodeCorrection {
		t.Errorf("second branch = %v, want [correction]", allowed[1])
	}

	rejected := routeTurn(false)
	if len(rejected) != 1 || len(rejected[0]) != 1 || rejected[0][0] != NodeSpeech {
		t.Errorf("rejected branches = %v, want [[tts]]", rejected)
	}
}

func TestRunBranchesOrderWithinBranch(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []NodeID
	step := func(_ context.Context, id NodeID) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	}

	runBranches(context.Background(), []Branch{{NodeConversation, NodeSpeech}}, step, func(NodeID, error) {
		t.Error("onErr called without a failure")
	})

	if len(order) != 2 || order[0] != NodeConversation || order[1] != NodeSpeech {
		t.Errorf("execution order = %v, want [chat tts]", order)
	}
}

func TestRunBranchesFailureStopsOnlyOwnBranch(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var mu sync.Mutex
	ran := make(map[NodeID]bool)
	step := func(_ context.Context, id NodeID) error {
		mu.Lock()
		ran[id] = true
		mu.Unlock()
		if id == NodeConversation {
			return boom
		}
		return nil
	}

	var failed []NodeID
	runBranches(context.Background(),
		[]Branch{{NodeConversation, NodeSpeech}, {NodeCorrection}},
		step,
		func(id NodeID, err error) {
			mu.Lock()
			failed = append(failed, id)
			mu.Unlock()
			if !errors.Is(err, boom) {
				t.Errorf("onErr error = %v, want boom", err)
			}
		},
	)

	if ran[NodeSpeech] {
		t.Error("speech ran after its branch failed")
	}
	if !ran[NodeCorrection] {
		t.Error("sibling correction branch did not run")
	}
	if len(failed) != 1 || failed[0] != NodeConversation {
		t.Errorf("failed nodes = %v, want [chat]", failed)
	}
}

func TestRunBranchesJoinsAllBranches(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var mu sync.Mutex
	done := 0
	step := func(_ context.Context, id NodeID) error {
		if id == NodeCorrection {
			<-release
		}
		mu.Lock()
		done++
		mu.Unlock()
		return nil
	}

	finished := make(chan struct{})
	go func() {
		runBranches(context.Background(),
			[]Branch{{NodeConversation}, {NodeCorrection}},
			step, func(NodeID, error) {})
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("runBranches returned before all branches concluded")
	default:
	}
	close(release)
	<-finished

	mu.Lock()
	defer mu.Unlock()
	if done != 2 {
		t.Errorf("completed steps = %d, want 2", done)
	}
}
