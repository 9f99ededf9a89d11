package repository

import (
	"context"
	"strings"

	"nanoj/internal/common/db"
	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

// MySQLSubmissionRepository stores submissions in MySQL. It serves
// deployments where several judge processes share one submission table;
// the JSON store remains the single-process default.
//
// Expected schema:
//
//	CREATE TABLE submissions (
//	    submission_id VARCHAR(64)  PRIMARY KEY,
//	    user_id       VARCHAR(64)  NOT NULL,
//	    problem_id    VARCHAR(64)  NOT NULL,
//	    language      VARCHAR(32)  NOT NULL,
//	    code          MEDIUMTEXT   NOT NULL,
//	    status        VARCHAR(16)  NOT NULL,
//	    score         INT          NOT NULL DEFAULT 0,
//	    counts        INT          NOT NULL DEFAULT 0,
//	    submit_time   VARCHAR(32)  NOT NULL,
//	    KEY idx_user (user_id),
//	    KEY idx_problem (problem_id)
//	);
type MySQLSubmissionRepository struct {
	db db.Database
}

// NewMySQLSubmissionRepository creates the MySQL-backed submission store.
func NewMySQLSubmissionRepository(database db.Database) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: database}
}

const submissionColumns = "submission_id, user_id, problem_id, language, code, status, score, counts, submit_time"

// Create inserts a submission record.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	query := "INSERT INTO submissions (" + submissionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.Exec(ctx, query,
		sub.SubmissionID, sub.UserID, sub.ProblemID, sub.Language,
		sub.Code, string(sub.Status), sub.Score, sub.Counts, sub.SubmitTime,
	)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return appErr.Newf(appErr.RecordAlreadyExists, "submission %s already exists", sub.SubmissionID)
		}
		return appErr.Wrapf(err, appErr.StoreError, "insert submission failed")
	}
	return nil
}

// Get fetches a submission by id.
func (r *MySQLSubmissionRepository) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE submission_id = ? LIMIT 1"
	row := r.db.QueryRow(ctx, query, submissionID)

	sub := &model.Submission{}
	var status string
	if err := row.Scan(
		&sub.SubmissionID, &sub.UserID, &sub.ProblemID, &sub.Language,
		&sub.Code, &status, &sub.Score, &sub.Counts, &sub.SubmitTime,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", submissionID)
		}
		return nil, appErr.Wrapf(err, appErr.StoreError, "query submission failed")
	}
	sub.Status = model.SubmissionStatus(status)
	return sub, nil
}

// Update replaces the stored submission's mutable fields. The update and
// the zero-rows disambiguation run in one transaction so the existence
// check sees the same state the UPDATE did.
func (r *MySQLSubmissionRepository) Update(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	return r.db.Transaction(ctx, func(tx db.Querier) error {
		query := "UPDATE submissions SET status = ?, score = ?, counts = ? WHERE submission_id = ?"
		res, err := tx.Exec(ctx, query, string(sub.Status), sub.Score, sub.Counts, sub.SubmissionID)
		if err != nil {
			return appErr.Wrapf(err, appErr.StoreError, "update submission failed")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return appErr.Wrapf(err, appErr.StoreError, "update submission failed")
		}
		if affected == 0 {
			// The row may exist with identical values already; distinguish a
			// no-op update from a missing row.
			var one int
			err := tx.QueryRow(ctx, "SELECT 1 FROM submissions WHERE submission_id = ? FOR UPDATE", sub.SubmissionID).Scan(&one)
			if db.IsNoRows(err) {
				return appErr.Newf(appErr.SubmissionNotFound, "submission %s not found", sub.SubmissionID)
			}
			if err != nil {
				return appErr.Wrapf(err, appErr.StoreError, "update submission failed")
			}
		}
		return nil
	})
}

// List returns matching submissions newest first, plus the total count.
func (r *MySQLSubmissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]*model.Submission, int64, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ProblemID != "" {
		where = append(where, "problem_id = ?")
		args = append(args, filter.ProblemID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions"+cond, args...).Scan(&total); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.StoreError, "count submissions failed")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := "SELECT " + submissionColumns + " FROM submissions" + cond +
		" ORDER BY submit_time DESC, submission_id DESC LIMIT ? OFFSET ?"
	args = append(args, size, (page-1)*size)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.StoreError, "list submissions failed")
	}
	defer rows.Close()

	out := make([]*model.Submission, 0, size)
	for rows.Next() {
		sub := &model.Submission{}
		var status string
		if err := rows.Scan(
			&sub.SubmissionID, &sub.UserID, &sub.ProblemID, &sub.Language,
			&sub.Code, &status, &sub.Score, &sub.Counts, &sub.SubmitTime,
		); err != nil {
			return nil, 0, appErr.Wrapf(err, appErr.StoreError, "scan submission failed")
		}
		sub.Status = model.SubmissionStatus(status)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.StoreError, "list submissions failed")
	}
	return out, total, nil
}
