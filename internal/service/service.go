package service

import (
	"context"
	"fmt"
	"io"
	"issue-map/internal/images"
	"issue-map/internal/model"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type IssueStorage interface {
	PingDB(ctx context.Context) error
	PingCache(ctx context.Context) error
	Create(ctx context.Context, in *model.Issue) (int64, error)
	List(ctx context.Context) ([]model.Issue, error)
	Resolve(ctx context.Context, id int64, actor string) (*model.Issue, bool, error)
	PushEvent(ctx context.Context, payload model.WebhookPayload) error
}

type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Delete(stored string) error
}

type Recorder interface {
	IssueCreated(issueType string)
	IssueResolved()
}

type HealthError struct {
	DBError    error
	RedisError error
}

func (h *HealthError) Error() string {
	return fmt.Sprintf("health: db=%v, redis=%v", h.DBError, h.RedisError)
}

type IssueService struct {
	storage  IssueStorage
	images   ImageStore
	metrics  Recorder
	logger   *logrus.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewIssueService(storage IssueStorage, images ImageStore, metrics Recorder, logger *logrus.Logger) *IssueService {
	return &IssueService{
		storage:  storage,
		images:   images,
		metrics:  metrics,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (is *IssueService) HealthCheck(ctx context.Context) *HealthError {
	dbErr := is.storage.PingDB(ctx)
	redisErr := is.storage.PingCache(ctx)
	if dbErr == nil && redisErr == nil {
		return nil
	}
	return &HealthError{DBError: dbErr, RedisError: redisErr}
}

// CreateIssue validates the report, stores the photo and persists the issue. The stored
// photo is removed again when the insert fails.
func (is *IssueService) CreateIssue(ctx context.Context, req model.CreateIssueRequest, filename string, image io.Reader) (*model.Issue, error) {
	if err := is.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	stored, err := is.images.Save(filename, image)
	if err != nil {
		return nil, err
	}

	in := &model.Issue{
		Category:      req.Category,
		Title:         req.Title,
		Description:   req.Description,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		ImageFilename: stored,
	}
	if _, err := is.storage.Create(ctx, in); err != nil {
		if delErr := is.images.Delete(stored); delErr != nil {
			is.logger.WithError(delErr).Warn("failed to remove orphaned image")
		}
		return nil, err
	}
	in.ImageURL = images.URL(in.ImageFilename)

	is.logger.WithFields(logrus.Fields{
		"issue_id":   in.ID,
		"issue_type": in.Category,
	}).Info("issue reported")
	if is.metrics != nil {
		is.metrics.IssueCreated(string(in.Category))
	}
	is.publish(ctx, model.EventIssueCreated, *in)
	return in, nil
}

func (is *IssueService) ListIssues(ctx context.Context) ([]model.Issue, error) {
	issues, err := is.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].ImageURL = images.URL(issues[i].ImageFilename)
	}
	return issues, nil
}

// ResolveIssue is a no-op for issues that are already resolved.
func (is *IssueService) ResolveIssue(ctx context.Context, id int64, actor string) (*model.Issue, error) {
	in, changed, err := is.storage.Resolve(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	in.ImageURL = images.URL(in.ImageFilename)
	if !changed {
		is.logger.WithField("issue_id", id).Debug("issue already resolved")
		return in, nil
	}

	is.logger.WithFields(logrus.Fields{
		"issue_id":    id,
		"resolved_by": actor,
	}).Info("issue resolved")
	if is.metrics != nil {
		is.metrics.IssueResolved()
	}
	is.publish(ctx, model.EventIssueResolved, *in)
	return in, nil
}

func (is *IssueService) publish(ctx context.Context, event model.EventType, in model.Issue) {
	payload := model.WebhookPayload{Event: event, Issue: in, OccurredAt: is.now().UTC()}
	if err := is.storage.PushEvent(ctx, payload); err != nil {
		is.logger.WithError(err).WithField("event", event).Warn("failed to queue issue event")
	}
}
