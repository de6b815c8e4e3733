package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"issue-map/internal/model"
	"issue-map/internal/repository"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type EventQueue interface {
	BLPopEvent(ctx context.Context, timeout time.Duration) (string, error)
}

type FailureRecorder interface {
	WebhookFailed()
}

// WebhookWorker drains the issue event queue and posts every event to webhookURL.
type WebhookWorker struct {
	queue      EventQueue
	logger     *logrus.Logger
	webhookURL string
	client     *http.Client
	metrics    FailureRecorder
	popTimeout time.Duration
	retryDelay time.Duration
}

func NewWebhookWorker(queue EventQueue, logger *logrus.Logger, webhookURL string, timeout time.Duration, metrics FailureRecorder) *WebhookWorker {
	return &WebhookWorker{
		queue:      queue,
		logger:     logger,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		metrics:    metrics,
		popTimeout: 5 * time.Second,
		retryDelay: time.Second,
	}
}

func (w *WebhookWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.queue.BLPopEvent(ctx, w.popTimeout)
		if errors.Is(err, repository.ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.WithError(err).Error("BLPop error")
			w.sleep(ctx)
			continue
		}

		if err := w.deliver(ctx, res); err != nil {
			w.logger.WithError(err).Error("webhook delivery failed")
			if w.metrics != nil {
				w.metrics.WebhookFailed()
			}
		}
	}
}

func (w *WebhookWorker) deliver(ctx context.Context, raw string) error {
	var task model.WebhookPayload
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return fmt.Errorf("unmarshal webhook task: %w", err)
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal webhook task: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid request to webhookURL: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	w.logger.WithFields(logrus.Fields{
		"event":    task.Event,
		"issue_id": task.Issue.ID,
	}).Debug("webhook delivered")
	return nil
}

func (w *WebhookWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
