// Package repository persists submissions, problems, languages, judging
// logs, and per-problem log visibility. The JSON-file backend is the
// default; MySQL can replace the submission store, and a Redis decorator
// adds cache-aside reads on top of either.
package repository

import (
	"context"

	"nanoj/internal/judge/model"
)

// SubmissionFilter narrows a submission listing. Zero fields match all.
type SubmissionFilter struct {
	UserID    string
	ProblemID string
	Status    model.SubmissionStatus
	Page      int
	PageSize  int
}

// SubmissionRepository stores submissions.
type SubmissionRepository interface {
	// Create inserts a new submission. An existing id yields
	// RecordAlreadyExists.
	Create(ctx context.Context, sub *model.Submission) error

	// Get fetches one submission or SubmissionNotFound.
	Get(ctx context.Context, submissionID string) (*model.Submission, error)

	// Update replaces the stored submission. A missing id yields
	// SubmissionNotFound.
	Update(ctx context.Context, sub *model.Submission) error

	// List returns matching submissions, newest first, plus the total
	// match count before pagination.
	List(ctx context.Context, filter SubmissionFilter) ([]*model.Submission, int64, error)
}

// ProblemRepository reads problem definitions.
type ProblemRepository interface {
	// GetProblem fetches one problem or ProblemNotFound.
	GetProblem(ctx context.Context, problemID string) (*model.Problem, error)
}

// LanguageRepository reads language profiles.
type LanguageRepository interface {
	// GetLanguage fetches one language profile or LanguageNotSupported.
	GetLanguage(ctx context.Context, name string) (*model.Language, error)

	// ListLanguages returns all configured languages.
	ListLanguages(ctx context.Context) ([]*model.Language, error)
}

// VisibilityRepository stores the per-problem log visibility flag.
type VisibilityRepository interface {
	// IsLogPublic reports whether the problem's case logs are public.
	// Unknown problems default to private.
	IsLogPublic(ctx context.Context, problemID string) (bool, error)

	// SetLogPublic toggles the flag.
	SetLogPublic(ctx context.Context, problemID string, public bool) error
}

// LogStore persists per-submission judging logs. Logs are write-once per
// judging pass; a rejudge replaces the log atomically and archives the
// previous one.
type LogStore interface {
	// Write stores the log for its submission id.
	Write(ctx context.Context, log *model.SubmissionLog) error

	// Read fetches one log or LogNotFound.
	Read(ctx context.Context, submissionID string) (*model.SubmissionLog, error)
}

// Repository is the facade handed to the judge service: every store the
// judging pipeline touches, behind one value.
type Repository struct {
	Submissions SubmissionRepository
	Problems    ProblemRepository
	Languages   LanguageRepository
	Visibility  VisibilityRepository
	Logs        LogStore
}
