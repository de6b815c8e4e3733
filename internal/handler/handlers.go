package handler

import (
	"context"
	"errors"
	"io"
	"issue-map/internal/errs"
	"issue-map/internal/model"
	"issue-map/internal/service"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type IssueService interface {
	HealthCheck(ctx context.Context) *service.HealthError
	CreateIssue(ctx context.Context, req model.CreateIssueRequest, filename string, image io.Reader) (*model.Issue, error)
	ListIssues(ctx context.Context) ([]model.Issue, error)
	ResolveIssue(ctx context.Context, id int64, actor string) (*model.Issue, error)
}

type Handler struct {
	logger         *logrus.Logger
	service        IssueService
	maxUploadBytes int64
}

func NewHandler(logger *logrus.Logger, service IssueService, maxUploadBytes int64) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) ListIssues(c *gin.Context) {
	issues, err := h.service.ListIssues(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (h *Handler) CreateIssue(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "Image too large"})
			return
		}
		h.logger.WithError(err).Info("missing image in CreateIssue request")
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid image"})
		return
	}

	issueType := c.PostForm("issue_type")
	if issueType == "" {
		issueType = c.PostForm("category")
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(c.PostForm("latitude")), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(c.PostForm("longitude")), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid coordinates"})
		return
	}

	req := model.CreateIssueRequest{
		Category:    model.Category(strings.TrimSpace(issueType)),
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: strings.TrimSpace(c.PostForm("description")),
		Latitude:    lat,
		Longitude:   lng,
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	created, err := h.service.CreateIssue(c.Request.Context(), req, fileHeader.Filename, file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ResolveIssue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid issue id"})
		return
	}

	resolved, err := h.service.ResolveIssue(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}

func (h *Handler) HealthHandler(c *gin.Context) {
	herr := h.service.HealthCheck(c.Request.Context())

	body := gin.H{"status": "ok", "db": "ok", "redis": "ok"}
	if herr != nil {
		body["status"] = "degraded"
		if herr.DBError != nil {
			body["db"] = "error"
		}
		if herr.RedisError != nil {
			body["redis"] = "error"
		}
		h.logger.WithError(herr).Warn("health check degraded")
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Issue not found"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal error"})
	}
}
