package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

const logArchiveDir = "archive"

// FileLogStore keeps one JSON log file per submission. A rejudge replaces
// the file atomically; the superseded log is archived compressed so the
// previous pass stays inspectable.
type FileLogStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileLogStore opens (creating if needed) a log store at dir.
func NewFileLogStore(dir string) (*FileLogStore, error) {
	if dir == "" {
		return nil, appErr.ValidationError("log_dir", "required")
	}
	if err := os.MkdirAll(filepath.Join(dir, logArchiveDir), 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StoreError, "create log dir failed")
	}
	return &FileLogStore{dir: dir}, nil
}

func (s *FileLogStore) logPath(submissionID string) string {
	return filepath.Join(s.dir, submissionID+".json")
}

// Write stores the submission's log, archiving any previous one first.
func (s *FileLogStore) Write(ctx context.Context, log *model.SubmissionLog) error {
	if log == nil || log.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if log.SubmissionID != filepath.Base(log.SubmissionID) {
		return appErr.ValidationError("submission_id", "invalid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.logPath(log.SubmissionID)
	if prev, err := os.ReadFile(path); err == nil {
		if archErr := s.archive(log.SubmissionID, prev); archErr != nil {
			return archErr
		}
	} else if !os.IsNotExist(err) {
		return appErr.Wrapf(err, appErr.StoreError, "read previous log failed")
	}
	return writeJSONFile(path, log)
}

// archive compresses a superseded log into the archive directory.
func (s *FileLogStore) archive(submissionID string, data []byte) error {
	name := fmt.Sprintf("%s-%d.json.zst", submissionID, time.Now().UnixNano())
	f, err := os.Create(filepath.Join(s.dir, logArchiveDir, name))
	if err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "create archive failed")
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return appErr.Wrapf(err, appErr.StoreError, "create archive encoder failed")
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return appErr.Wrapf(err, appErr.StoreError, "write archive failed")
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return appErr.Wrapf(err, appErr.StoreError, "flush archive failed")
	}
	if err := f.Close(); err != nil {
		return appErr.Wrapf(err, appErr.StoreError, "close archive failed")
	}
	return nil
}

// Read fetches one submission log.
func (s *FileLogStore) Read(ctx context.Context, submissionID string) (*model.SubmissionLog, error) {
	if submissionID == "" || submissionID != filepath.Base(submissionID) {
		return nil, appErr.ValidationError("submission_id", "invalid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.logPath(submissionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.Newf(appErr.LogNotFound, "no log for submission %s", submissionID)
		}
		return nil, appErr.Wrapf(err, appErr.StoreError, "read log failed")
	}
	var log model.SubmissionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "decode log failed")
	}
	return &log, nil
}
