package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

const (
	defaultWorkers   = 4
	pendingPerWorker = 16
)

// Pool schedules judging passes. Concurrency is bounded by a semaphore;
// the same submission id is never judged twice at once. In synchronous
// mode (the TESTING flag) Submit judges inline so callers can assert on
// final state without polling.
type Pool struct {
	svc         *JudgeService
	sem         chan struct{}
	synchronous bool
	maxPending  int

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewPool creates a pool with the given worker bound.
func NewPool(svc *JudgeService, workers int, synchronous bool) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pool{
		svc:         svc,
		sem:         make(chan struct{}, workers),
		synchronous: synchronous,
		maxPending:  workers * pendingPerWorker,
		inflight:    make(map[string]struct{}),
	}
}

// Submit schedules one judging pass. A submission already being judged
// yields JudgeInProgress; a saturated pool yields JudgeQueueFull.
func (p *Pool) Submit(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}

	p.mu.Lock()
	if _, busy := p.inflight[submissionID]; busy {
		p.mu.Unlock()
		return appErr.Newf(appErr.JudgeInProgress, "submission %s is being judged", submissionID)
	}
	if !p.synchronous && len(p.inflight) >= p.maxPending {
		p.mu.Unlock()
		return appErr.New(appErr.JudgeQueueFull)
	}
	p.inflight[submissionID] = struct{}{}
	p.mu.Unlock()

	if p.synchronous {
		defer p.release(submissionID)
		return p.svc.Judge(ctx, submissionID)
	}

	// The judging pass outlives the request; keep trace values but drop
	// the request's cancellation.
	bgCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release(submissionID)
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		if err := p.svc.Judge(bgCtx, submissionID); err != nil {
			logger.Error(bgCtx, "background judging failed",
				zap.String("submission_id", submissionID),
				zap.Error(err))
		}
	}()
	return nil
}

func (p *Pool) release(submissionID string) {
	p.mu.Lock()
	delete(p.inflight, submissionID)
	p.mu.Unlock()
}

// Wait blocks until every scheduled pass has finished. Used on shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
