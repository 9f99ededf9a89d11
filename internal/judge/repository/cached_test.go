package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nanoj/internal/common/cache"
	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	return c
}

// countingRepo counts backend reads so cache hits are observable.
type countingRepo struct {
	SubmissionRepository
	gets int
}

func (r *countingRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	r.gets++
	return r.SubmissionRepository.Get(ctx, id)
}

func TestCachedGetServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingRepo{SubmissionRepository: newTestStore(t)}
	repo := NewCachedSubmissionRepository(backend, newTestCache(t))

	sub := testSubmission("s1", "u1", "p1", "2026-08-01T10:00:00Z")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Create primes the cache, so neither read should hit the backend.
	for i := 0; i < 2; i++ {
		got, err := repo.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SubmissionID != "s1" {
			t.Fatalf("got %+v", got)
		}
	}
	if backend.gets != 0 {
		t.Errorf("backend gets = %d, want 0", backend.gets)
	}
}

func TestCachedGetCachesMisses(t *testing.T) {
	ctx := context.Background()
	backend := &countingRepo{SubmissionRepository: newTestStore(t)}
	repo := NewCachedSubmissionRepository(backend, newTestCache(t))

	for i := 0; i < 3; i++ {
		if _, err := repo.Get(ctx, "ghost"); appErr.GetCode(err) != appErr.SubmissionNotFound {
			t.Fatalf("expected SubmissionNotFound, got %v", err)
		}
	}
	if backend.gets != 1 {
		t.Errorf("backend gets = %d, want 1 (null cached)", backend.gets)
	}
}

func TestCachedUpdateInvalidates(t *testing.T) {
	ctx := context.Background()
	backend := &countingRepo{SubmissionRepository: newTestStore(t)}
	repo := NewCachedSubmissionRepository(backend, newTestCache(t))

	sub := testSubmission("s1", "u1", "p1", "2026-08-01T10:00:00Z")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated := *sub
	updated.Status = model.StatusSuccess
	updated.Score = 30
	if err := repo.Update(ctx, &updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusSuccess || got.Score != 30 {
		t.Errorf("stale read after update: %+v", got)
	}
	if backend.gets != 1 {
		t.Errorf("backend gets = %d, want 1 (cache invalidated once)", backend.gets)
	}
}
