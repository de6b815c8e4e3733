// Package renderer keeps the map's issue markers in step with the remote issue list.
package renderer

import (
	"context"
	"fmt"
	"issue-map/internal/images"
	"issue-map/internal/model"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type IssueSource interface {
	ListIssues(ctx context.Context) ([]model.Issue, error)
}

type IssueResolver interface {
	ResolveIssue(ctx context.Context, id int64) error
}

// MarkerLayer is the part of the map widget that draws issue markers.
type MarkerLayer interface {
	ClearMarkers()
	AddMarker(m Marker)
}

type Notifier interface {
	Notify(err error)
}

// Detail is what a marker's popup shows.
type Detail struct {
	Category    model.Category
	Title       string
	Description string
	ImageURL    string
	Coordinate  model.Coordinate
	CreatedAt   time.Time
	Status      model.Status
}

type Marker struct {
	IssueID  int64
	Position model.Coordinate
	Icon     string
	Color    string
	Label    string
	Detail   Detail
	// Resolvable is true for open issues; the popup then offers a resolve control.
	Resolvable bool
}

const defaultIcon = "/static/icons/default.png"

var icons = map[model.Category]string{
	model.CategoryGarbage:         "/static/icons/garbage.png",
	model.CategoryBrokenFootpath:  "/static/icons/broken.png",
	model.CategoryBlockedFootpath: "/static/icons/blocked.png",
	model.CategoryIllegalFlex:     "/static/icons/flex.png",
	model.CategoryPothole:         "/static/icons/pothole.png",
}

func IconFor(c model.Category) string {
	if icon, ok := icons[c]; ok {
		return icon
	}
	return defaultIcon
}

func ColorFor(s model.Status) string {
	if s == model.StatusResolved {
		return "green"
	}
	return "red"
}

func MarkerFor(in model.Issue) Marker {
	imageURL := in.ImageURL
	if imageURL == "" {
		imageURL = images.URL(in.ImageFilename)
	}
	label := in.Title
	if label == "" {
		label = string(in.Category)
	}
	return Marker{
		IssueID:  in.ID,
		Position: in.Coordinate(),
		Icon:     IconFor(in.Category),
		Color:    ColorFor(in.Status),
		Label:    label,
		Detail: Detail{
			Category:    in.Category,
			Title:       in.Title,
			Description: in.Description,
			ImageURL:    imageURL,
			Coordinate:  in.Coordinate(),
			CreatedAt:   in.CreatedAt,
			Status:      in.Status,
		},
		Resolvable: in.Status != model.StatusResolved,
	}
}

type Renderer struct {
	source   IssueSource
	resolver IssueResolver
	layer    MarkerLayer
	notifier Notifier
	logger   *logrus.Logger

	mu      sync.Mutex
	markers []Marker
}

func New(source IssueSource, resolver IssueResolver, layer MarkerLayer, notifier Notifier, logger *logrus.Logger) *Renderer {
	return &Renderer{
		source:   source,
		resolver: resolver,
		layer:    layer,
		notifier: notifier,
		logger:   logger,
	}
}

// Refresh replaces every marker with the freshly fetched issue list. On fetch failure the
// markers already on the map are left as they are. Overlapping refreshes are not
// sequenced: whichever completes last is what stays on the map.
func (r *Renderer) Refresh(ctx context.Context) error {
	issues, err := r.source.ListIssues(ctx)
	if err != nil {
		err = fmt.Errorf("refresh issues: %w", err)
		r.logger.WithError(err).Warn("keeping previously rendered markers")
		r.notifier.Notify(err)
		return err
	}

	markers := make([]Marker, 0, len(issues))
	for _, in := range issues {
		markers = append(markers, MarkerFor(in))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layer.ClearMarkers()
	for _, m := range markers {
		r.layer.AddMarker(m)
	}
	r.markers = markers
	r.logger.WithField("markers", len(markers)).Debug("issue markers rendered")
	return nil
}

// Resolve asks the service to resolve id and refreshes on success. On failure nothing
// rendered changes and no refresh happens.
func (r *Renderer) Resolve(ctx context.Context, id int64) error {
	if err := r.resolver.ResolveIssue(ctx, id); err != nil {
		err = fmt.Errorf("resolve issue %d: %w", id, err)
		r.logger.WithError(err).Warn("resolve failed")
		r.notifier.Notify(err)
		return err
	}
	return r.Refresh(ctx)
}

func (r *Renderer) Markers() []Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Marker, len(r.markers))
	copy(out, r.markers)
	return out
}

func (r *Renderer) Marker(id int64) (Marker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.markers {
		if m.IssueID == id {
			return m, true
		}
	}
	return Marker{}, false
}
