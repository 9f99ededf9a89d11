// Package response implements the JSON envelope shared by all HTTP handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

// Response is the standard API envelope. Code mirrors the HTTP status so
// clients can rely on the body alone.
type Response struct {
	Code    int         `json:"code"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// Success sends a successful response with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Msg:     "success",
		Data:    data,
		TraceID: getTraceID(c),
	})
}

// SuccessWithMessage sends a successful response with a custom message
func SuccessWithMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Msg:     msg,
		Data:    data,
		TraceID: getTraceID(c),
	})
}

// Error sends an error response derived from the error's code
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	status := customErr.Code.HTTPStatus()

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.Any("details", customErr.Details),
	)

	c.JSON(status, Response{
		Code:    status,
		Msg:     customErr.Error(),
		TraceID: getTraceID(c),
	})
}

// ErrorWithStatus sends an error response with an explicit HTTP status
func ErrorWithStatus(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{
		Code:    status,
		Msg:     msg,
		TraceID: getTraceID(c),
	})
}

// BadRequest sends a 400 bad request error
func BadRequest(c *gin.Context, msg string) {
	ErrorWithStatus(c, http.StatusBadRequest, msg)
}

// Unauthorized sends a 401 unauthorized error
func Unauthorized(c *gin.Context, msg string) {
	if msg == "" {
		msg = errors.Unauthorized.Message()
	}
	ErrorWithStatus(c, http.StatusUnauthorized, msg)
}

// Forbidden sends a 403 forbidden error
func Forbidden(c *gin.Context, msg string) {
	if msg == "" {
		msg = errors.Forbidden.Message()
	}
	ErrorWithStatus(c, http.StatusForbidden, msg)
}

// NotFound sends a 404 not found error
func NotFound(c *gin.Context, msg string) {
	if msg == "" {
		msg = errors.NotFound.Message()
	}
	ErrorWithStatus(c, http.StatusNotFound, msg)
}

// Paginated represents a paginated response
type Paginated struct {
	Items      interface{} `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// SuccessWithPagination sends a successful response with pagination
func SuccessWithPagination(c *gin.Context, items interface{}, total, page, pageSize int) {
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	Success(c, Paginated{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// AbortWithError aborts the request and sends error response
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	return ""
}
