package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nanoj/internal/judge/model"
	"nanoj/internal/judge/sandbox"
	appErr "nanoj/pkg/errors"
)

// blockingExecutor holds every run until release is closed.
type blockingExecutor struct {
	release chan struct{}
}

func (e *blockingExecutor) Execute(ctx context.Context, req sandbox.Request) (sandbox.Run, error) {
	select {
	case <-e.release:
	case <-time.After(10 * time.Second):
		return sandbox.Run{}, fmt.Errorf("test executor never released")
	}
	return sandbox.Run{Status: model.VerdictAC, Stdout: "3\n"}, nil
}

func (e *blockingExecutor) Available() bool { return true }
func (e *blockingExecutor) Name() string    { return "docker" }

func TestPoolSynchronousJudgesInline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProblem(t, twoCaseProblem("p1", model.JudgeModeStandard))
	f.seedSubmission(t, pendingSubmission("s1", "p1"))

	exec := &fakeExecutor{name: "docker", available: true, runs: map[string]sandbox.Run{
		"1 2\n": {Status: model.VerdictAC, Stdout: "3\n"},
		"2 3\n": {Status: model.VerdictAC, Stdout: "5\n"},
	}}
	pool := NewPool(newService(t, f, exec, nil, Config{}), 2, true)

	if err := pool.Submit(ctx, "s1"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Synchronous mode returns only after the pass finished.
	sub, err := f.repo.Submissions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != model.StatusSuccess || sub.Score != 20 {
		t.Errorf("status/score = %s/%d, want success/20", sub.Status, sub.Score)
	}
}

func TestPoolSynchronousPropagatesJudgeError(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{name: "docker", available: true}
	pool := NewPool(newService(t, f, exec, nil, Config{}), 2, true)

	if err := pool.Submit(context.Background(), "ghost"); appErr.GetCode(err) != appErr.SubmissionNotFound {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}

func TestPoolRejectsEmptyID(t *testing.T) {
	f := newFixture(t)
	exec := &fakeExecutor{name: "docker", available: true}
	pool := NewPool(newService(t, f, exec, nil, Config{}), 2, true)
	if err := pool.Submit(context.Background(), ""); err == nil {
		t.Fatal("expected validation error for empty id")
	}
}

func TestPoolDuplicateInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProblem(t, twoCaseProblem("p1", model.JudgeModeStandard))
	f.seedSubmission(t, pendingSubmission("s1", "p1"))

	exec := &blockingExecutor{release: make(chan struct{})}
	pool := NewPool(newService(t, f, exec, nil, Config{}), 2, false)

	if err := pool.Submit(ctx, "s1"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := pool.Submit(ctx, "s1"); appErr.GetCode(err) != appErr.JudgeInProgress {
		t.Fatalf("expected JudgeInProgress, got %v", err)
	}

	close(exec.release)
	pool.Wait()

	sub, err := f.repo.Submissions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success after drain", sub.Status)
	}

	// The id is judgeable again once the pass finished.
	if err := pool.Submit(ctx, "s1"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	pool.Wait()
}

func TestPoolQueueFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedProblem(t, twoCaseProblem("p1", model.JudgeModeStandard))

	exec := &blockingExecutor{release: make(chan struct{})}
	pool := NewPool(newService(t, f, exec, nil, Config{}), 1, false)

	// One worker admits pendingPerWorker submissions before refusing.
	for i := 0; i < pendingPerWorker; i++ {
		id := fmt.Sprintf("s%d", i)
		f.seedSubmission(t, pendingSubmission(id, "p1"))
		if err := pool.Submit(ctx, id); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}

	f.seedSubmission(t, pendingSubmission("overflow", "p1"))
	if err := pool.Submit(ctx, "overflow"); appErr.GetCode(err) != appErr.JudgeQueueFull {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}

	close(exec.release)
	pool.Wait()

	sub, err := f.repo.Submissions.Get(ctx, "s0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success after drain", sub.Status)
	}
}
