package model

import (
	"fmt"
	"math"
	"time"
)

type Category string

const (
	CategoryGarbage         Category = "garbage"
	CategoryBrokenFootpath  Category = "broken_footpath"
	CategoryBlockedFootpath Category = "blocked_footpath"
	CategoryIllegalFlex     Category = "illegal_flex"
	CategoryPothole         Category = "pothole"
)

// Categories is the closed set of issue types accepted by the service.
var Categories = []Category{
	CategoryGarbage,
	CategoryBrokenFootpath,
	CategoryBlockedFootpath,
	CategoryIllegalFlex,
	CategoryPothole,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude)
	}
	return nil
}

type Issue struct {
	ID            int64      `json:"id"`
	Category      Category   `json:"issue_type"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	ImageFilename string     `json:"image_filename"`
	ImageURL      string     `json:"image_url"`
	Status        Status     `json:"status"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func (i Issue) Coordinate() Coordinate {
	return Coordinate{Latitude: i.Latitude, Longitude: i.Longitude}
}

type CreateIssueRequest struct {
	Category    Category `validate:"required,issue_type"`
	Title       string   `validate:"max=200"`
	Description string   `validate:"max=1000"`
	Latitude    float64  `validate:"lat"`
	Longitude   float64  `validate:"lng"`
}

// Image is an uploaded photo as received from a form or read from disk.
type Image struct {
	Filename string
	Data     []byte
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type EventType string

const (
	EventIssueCreated  EventType = "issue.created"
	EventIssueResolved EventType = "issue.resolved"
)

type WebhookPayload struct {
	Event      EventType `json:"event"`
	Issue      Issue     `json:"issue"`
	OccurredAt time.Time `json:"occurred_at"`
}
