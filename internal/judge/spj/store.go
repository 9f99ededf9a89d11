// Package spj stores and runs problem-supplied special-judge checkers.
package spj

import (
	"context"
	"errors"
	"io"
	"strings"

	"nanoj/internal/common/storage"
	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

// Store persists checker scripts in blob storage, one script per problem.
// The object key carries the language as its extension.
type Store struct {
	blob   storage.BlobStorage
	bucket string
}

// NewStore creates a checker store on the given blob backend.
func NewStore(blob storage.BlobStorage, bucket string) *Store {
	if bucket == "" {
		bucket = "checkers"
	}
	return &Store{blob: blob, bucket: bucket}
}

func checkerKey(problemID string, lang model.CheckerLanguage) string {
	if lang == model.CheckerCpp {
		return problemID + ".cpp"
	}
	return problemID + ".py"
}

// Save writes a checker script, replacing any script of either language
// previously stored for the problem.
func (s *Store) Save(ctx context.Context, script *model.CheckerScript) error {
	if script == nil || script.ProblemID == "" {
		return appErr.ValidationError("problem_id", "required")
	}
	other := model.CheckerPython
	if script.Language == model.CheckerPython {
		other = model.CheckerCpp
	}
	if err := s.blob.DeleteObject(ctx, s.bucket, checkerKey(script.ProblemID, other)); err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "remove previous checker failed")
	}
	body := strings.NewReader(string(script.Source))
	if err := s.blob.PutObject(ctx, s.bucket, checkerKey(script.ProblemID, script.Language), body, int64(len(script.Source)), "text/plain"); err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "store checker failed")
	}
	return nil
}

// Load fetches the checker for a problem, trying python first and then
// cpp. A missing checker yields CheckerNotFound.
func (s *Store) Load(ctx context.Context, problemID string) (*model.CheckerScript, error) {
	for _, lang := range []model.CheckerLanguage{model.CheckerPython, model.CheckerCpp} {
		rc, err := s.blob.GetObject(ctx, s.bucket, checkerKey(problemID, lang))
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return nil, appErr.Wrapf(err, appErr.StoreError, "load checker failed")
		}
		source, readErr := io.ReadAll(rc)
		_ = rc.Close()
		if readErr != nil {
			return nil, appErr.Wrapf(readErr, appErr.StoreError, "read checker failed")
		}
		return &model.CheckerScript{ProblemID: problemID, Language: lang, Source: source}, nil
	}
	return nil, appErr.Newf(appErr.CheckerNotFound, "no checker stored for problem %s", problemID)
}

// Delete removes the problem's checker in either language. Reports
// CheckerNotFound when nothing was stored.
func (s *Store) Delete(ctx context.Context, problemID string) error {
	deleted := false
	for _, lang := range []model.CheckerLanguage{model.CheckerPython, model.CheckerCpp} {
		key := checkerKey(problemID, lang)
		if _, err := s.blob.StatObject(ctx, s.bucket, key); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			return appErr.Wrapf(err, appErr.StoreError, "stat checker failed")
		}
		if err := s.blob.DeleteObject(ctx, s.bucket, key); err != nil {
			return appErr.Wrapf(err, appErr.StoreError, "delete checker failed")
		}
		deleted = true
	}
	if !deleted {
		return appErr.Newf(appErr.CheckerNotFound, "no checker stored for problem %s", problemID)
	}
	return nil
}
