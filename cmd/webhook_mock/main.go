package main

import (
	"encoding/json"
	"issue-map/internal/model"
	"net/http"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	http.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var payload model.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logger.WithError(err).Warn("malformed webhook payload")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		logger.WithFields(logrus.Fields{
			"event":      payload.Event,
			"issue_id":   payload.Issue.ID,
			"issue_type": payload.Issue.Category,
			"status":     payload.Issue.Status,
		}).Info("received webhook")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logger.Info("webhook mock listening on :9090")
	logger.Fatal(http.ListenAndServe(":9090", nil))
}
