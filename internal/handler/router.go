package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	UploadDir  string
	AuthSecret string
	Metrics    MetricsExporter
}

type MetricsExporter interface {
	HTTPObserver
	Handler() http.Handler
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	if opts.Metrics != nil {
		r.Use(observeRequests(opts.Metrics))
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/issues", h.ListIssues)
	api.GET("/spots", h.ListIssues)
	api.POST("/issues", h.CreateIssue)
	api.POST("/issues/:id/resolve", requireActor(opts.AuthSecret), h.ResolveIssue)
	api.GET("/system/health", h.HealthHandler)

	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}
	return r
}
