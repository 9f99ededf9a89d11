package controller

import (
	"io"

	"github.com/gin-gonic/gin"

	"nanoj/internal/judge/model"
	"nanoj/internal/judge/repository"
	"nanoj/internal/judge/spj"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/response"
)

// Checker scripts are source text; anything bigger is not a checker.
const maxCheckerBytes = 1 << 20

// SPJController handles special-judge script endpoints.
type SPJController struct {
	store      *spj.Store
	runner     *spj.Runner
	visibility repository.VisibilityRepository
}

// NewSPJController creates a new SPJController.
func NewSPJController(store *spj.Store, runner *spj.Runner, visibility repository.VisibilityRepository) *SPJController {
	return &SPJController{store: store, runner: runner, visibility: visibility}
}

// Upload accepts a checker script as a multipart file.
func (h *SPJController) Upload(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "checker file is required")
		return
	}
	if fileHeader.Size > maxCheckerBytes {
		response.BadRequest(c, "checker file too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InternalServerError, "open upload failed"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxCheckerBytes+1))
	if err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.InternalServerError, "read upload failed"))
		return
	}
	if len(content) > maxCheckerBytes {
		response.BadRequest(c, "checker file too large")
		return
	}

	h.save(c, problemID, fileHeader.Filename, content)
}

// UploadTextRequest defines the plain-text checker payload.
type UploadTextRequest struct {
	Language string `json:"language" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// UploadText accepts a checker script as JSON text.
func (h *SPJController) UploadText(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	var req UploadTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if len(req.Content) > maxCheckerBytes {
		response.BadRequest(c, "checker script too large")
		return
	}

	var filename string
	switch model.CheckerLanguage(req.Language) {
	case model.CheckerPython:
		filename = "checker.py"
	case model.CheckerCpp:
		filename = "checker.cpp"
	default:
		response.BadRequest(c, "language must be python or cpp")
		return
	}
	h.save(c, problemID, filename, []byte(req.Content))
}

// save runs the upload screen and persists the script.
func (h *SPJController) save(c *gin.Context, problemID, filename string, content []byte) {
	lang, err := spj.ValidateUpload(filename, content)
	if err != nil {
		response.Error(c, err)
		return
	}
	script := &model.CheckerScript{
		ProblemID: problemID,
		Language:  lang,
		Source:    content,
	}
	if err := h.store.Save(c.Request.Context(), script); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"problem_id": problemID, "language": lang})
}

// Get returns the stored checker script.
func (h *SPJController) Get(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	script, err := h.store.Load(c.Request.Context(), problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"problem_id": script.ProblemID,
		"language":   script.Language,
		"content":    string(script.Source),
	})
}

// Delete removes the checker script.
func (h *SPJController) Delete(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), problemID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"problem_id": problemID})
}

// TestRequest defines the checker dry-run payload.
type TestRequest struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
}

// Test dry-runs the stored checker against caller-supplied data.
func (h *SPJController) Test(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	var req TestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.runner.Run(c.Request.Context(), problemID, req.Input, req.ExpectedOutput, req.ActualOutput)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// VisibilityRequest defines the log visibility toggle payload.
type VisibilityRequest struct {
	Public *bool `json:"public" binding:"required"`
}

// SetLogVisibility toggles public access to a problem's case logs.
func (h *SPJController) SetLogVisibility(c *gin.Context) {
	problemID := c.Param("id")
	if problemID == "" {
		response.BadRequest(c, "Invalid problem id")
		return
	}
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Public == nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if err := h.visibility.SetLogPublic(c.Request.Context(), problemID, *req.Public); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"problem_id": problemID, "public": *req.Public})
}
