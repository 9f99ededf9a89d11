package repository

import (
	"context"
	"encoding/json"
	"time"

	"nanoj/internal/common/cache"
	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

const (
	defaultSubmissionTTL      = 30 * time.Minute
	defaultSubmissionEmptyTTL = 5 * time.Minute
	submissionCacheKeyPrefix  = "submission:"
)

// CachedSubmissionRepository adds cache-aside reads with null caching on
// top of any SubmissionRepository. Writes go through to the backing store
// and invalidate the cached entry.
type CachedSubmissionRepository struct {
	backend  SubmissionRepository
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewCachedSubmissionRepository wraps backend with the cache.
func NewCachedSubmissionRepository(backend SubmissionRepository, c cache.Cache) *CachedSubmissionRepository {
	return NewCachedSubmissionRepositoryWithTTL(backend, c, defaultSubmissionTTL, defaultSubmissionEmptyTTL)
}

// NewCachedSubmissionRepositoryWithTTL wraps backend with custom TTLs.
func NewCachedSubmissionRepositoryWithTTL(backend SubmissionRepository, c cache.Cache, ttl, emptyTTL time.Duration) *CachedSubmissionRepository {
	if ttl <= 0 {
		ttl = defaultSubmissionTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultSubmissionEmptyTTL
	}
	return &CachedSubmissionRepository{backend: backend, cache: c, ttl: ttl, emptyTTL: emptyTTL}
}

func submissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}

// Create inserts through the backend and primes the cache.
func (r *CachedSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if err := r.backend.Create(ctx, sub); err != nil {
		return err
	}
	if payload := marshalSubmission(sub); payload != "" {
		_ = r.cache.Set(ctx, submissionCacheKey(sub.SubmissionID), payload, r.ttl)
	}
	return nil
}

// Get serves reads cache-aside, caching misses as null entries.
func (r *CachedSubmissionRepository) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := cache.GetWithCached(
		ctx,
		r.cache,
		submissionCacheKey(submissionID),
		r.ttl,
		r.emptyTTL,
		func(s *model.Submission) bool { return s == nil },
		marshalSubmission,
		unmarshalSubmission,
		func(ctx context.Context) (*model.Submission, error) {
			sub, err := r.backend.Get(ctx, submissionID)
			if err != nil {
				if appErr.GetCode(err) == appErr.SubmissionNotFound {
					return nil, nil
				}
				return nil, err
			}
			return sub, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
	}
	return sub, nil
}

// Update writes through and drops the cached entry.
func (r *CachedSubmissionRepository) Update(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	return cache.UpdateCached(ctx, r.cache, submissionCacheKey(sub.SubmissionID), func(ctx context.Context) error {
		return r.backend.Update(ctx, sub)
	})
}

// List bypasses the cache; listings are filtered and paginated.
func (r *CachedSubmissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]*model.Submission, int64, error) {
	return r.backend.List(ctx, filter)
}

func marshalSubmission(sub *model.Submission) string {
	if sub == nil {
		return ""
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var sub model.Submission
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
