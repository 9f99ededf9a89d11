// Package server assembles the HTTP route table. Tests and the server
// binary share this wiring so what is tested is what runs.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nanoj/internal/auth"
	authctl "nanoj/internal/auth/controller"
	"nanoj/internal/common/http/middleware"
	judgectl "nanoj/internal/judge/controller"
	"nanoj/pkg/utils/logger"
)

// Deps are the controllers and services the route table needs.
type Deps struct {
	Auth        *auth.Service
	AuthCtl     *authctl.AuthController
	Submissions *judgectl.SubmissionController
	SPJ         *judgectl.SPJController
}

// NewRouter builds the gin engine with every route registered.
// Submission reads are public; writes need a session; checker and
// visibility management need the admin role.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.TraceContext(), requestLogger())

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", deps.AuthCtl.Register)
	authGroup.POST("/login", deps.AuthCtl.Login)
	authGroup.GET("/me", auth.RequireAuth(deps.Auth), deps.AuthCtl.Me)

	api.GET("/languages", deps.Submissions.ListLanguages)

	subs := api.Group("/submissions")
	subs.POST("", auth.RequireAuth(deps.Auth), deps.Submissions.Create)
	subs.GET("", deps.Submissions.List)
	subs.GET("/:id", deps.Submissions.Get)
	subs.GET("/:id/log", auth.RequireAuth(deps.Auth), deps.Submissions.GetLog)
	subs.PUT("/:id/rejudge", auth.RequireAuth(deps.Auth), auth.RequireAdmin(), deps.Submissions.Rejudge)

	problems := api.Group("/problems", auth.RequireAuth(deps.Auth), auth.RequireAdmin())
	problems.POST("/:id/spj", deps.SPJ.Upload)
	problems.POST("/:id/spj/text", deps.SPJ.UploadText)
	problems.GET("/:id/spj", deps.SPJ.Get)
	problems.DELETE("/:id/spj", deps.SPJ.Delete)
	problems.POST("/:id/spj/test", deps.SPJ.Test)
	problems.PUT("/:id/log_visibility", deps.SPJ.SetLogVisibility)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logger.Info(c.Request.Context(), "request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
