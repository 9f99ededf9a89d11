// Package controller exposes the judge core over HTTP: submission
// lifecycle, per-case logs, and special-judge script management.
package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nanoj/internal/auth"
	"nanoj/internal/judge/model"
	"nanoj/internal/judge/repository"
	"nanoj/internal/judge/service"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/response"
)

// SubmissionController handles submission HTTP endpoints.
type SubmissionController struct {
	repo repository.Repository
	pool *service.Pool
}

// NewSubmissionController creates a new SubmissionController.
func NewSubmissionController(repo repository.Repository, pool *service.Pool) *SubmissionController {
	return &SubmissionController{repo: repo, pool: pool}
}

// CreateRequest defines the submission payload.
type CreateRequest struct {
	ProblemID string `json:"problem_id" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// Create accepts a submission and schedules judging. In synchronous mode
// the response already carries the terminal state.
func (h *SubmissionController) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	ctx := c.Request.Context()

	// The submission must reference an existing problem and language
	// before it is accepted.
	if _, err := h.repo.Problems.GetProblem(ctx, req.ProblemID); err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.repo.Languages.GetLanguage(ctx, req.Language); err != nil {
		response.Error(c, err)
		return
	}

	sub := &model.Submission{
		SubmissionID: uuid.NewString(),
		UserID:       auth.CallerFrom(c).Username,
		ProblemID:    req.ProblemID,
		Language:     req.Language,
		Code:         req.Code,
		Status:       model.StatusPending,
		SubmitTime:   model.NewSubmitTime(time.Now()),
	}
	if err := h.repo.Submissions.Create(ctx, sub); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.pool.Submit(ctx, sub.SubmissionID); err != nil {
		if appErr.GetCode(err) == appErr.JudgeQueueFull {
			response.Error(c, err)
			return
		}
		// A synchronous judging fault already flipped the submission
		// to error; the refreshed read below reports it.
	}

	current, err := h.repo.Submissions.Get(ctx, sub.SubmissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, current)
}

// Get returns one submission.
func (h *SubmissionController) Get(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	sub, err := h.repo.Submissions.Get(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// List returns submissions filtered by user and problem. At least one of
// the two filters is required to keep listings bounded.
func (h *SubmissionController) List(c *gin.Context) {
	var query struct {
		UserID    string `form:"user_id"`
		ProblemID string `form:"problem_id"`
		Status    string `form:"judge_status"`
		Page      int    `form:"page,default=1"`
		PageSize  int    `form:"page_size,default=20"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if query.UserID == "" && query.ProblemID == "" {
		response.BadRequest(c, "at least one of user_id and problem_id is required")
		return
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 || query.PageSize > 100 {
		query.PageSize = 20
	}

	subs, total, err := h.repo.Submissions.List(c.Request.Context(), repository.SubmissionFilter{
		UserID:    query.UserID,
		ProblemID: query.ProblemID,
		Status:    model.SubmissionStatus(query.Status),
		Page:      query.Page,
		PageSize:  query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPagination(c, subs, int(total), query.Page, query.PageSize)
}

// Rejudge resets a submission to pending and schedules a fresh pass.
func (h *SubmissionController) Rejudge(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	ctx := c.Request.Context()

	sub, err := h.repo.Submissions.Get(ctx, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	sub.Status = model.StatusPending
	sub.Score = 0
	sub.Counts = 0
	if err := h.repo.Submissions.Update(ctx, sub); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.pool.Submit(ctx, submissionID); err != nil {
		code := appErr.GetCode(err)
		if code == appErr.JudgeQueueFull || code == appErr.JudgeInProgress {
			response.Error(c, err)
			return
		}
	}

	current, err := h.repo.Submissions.Get(ctx, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, current)
}

// GetLog returns the per-case judging log. Readable by the submission
// owner, an admin, or anyone when the problem's cases are public.
func (h *SubmissionController) GetLog(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	ctx := c.Request.Context()

	sub, err := h.repo.Submissions.Get(ctx, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	caller := auth.CallerFrom(c)
	if caller.Username != sub.UserID && !caller.IsAdmin() {
		public, err := h.repo.Visibility.IsLogPublic(ctx, sub.ProblemID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !public {
			response.Error(c, appErr.New(appErr.Forbidden))
			return
		}
	}

	log, err := h.repo.Logs.Read(ctx, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, log)
}

// ListLanguages returns the configured language profiles.
func (h *SubmissionController) ListLanguages(c *gin.Context) {
	langs, err := h.repo.Languages.ListLanguages(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, langs)
}
