// Package console renders the issue map and the report form on a terminal.
package console

import (
	"fmt"
	"io"
	"issue-map/internal/model"
	"issue-map/internal/renderer"
	"issue-map/internal/workflow"
	"sort"
	"sync"
	"text/tabwriter"
)

// DefaultCenter is where the map opens when no position is known.
var DefaultCenter = model.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

const DefaultZoom = 13

type clickHandler struct {
	id int
	fn func(model.Coordinate)
}

// Map is a terminal stand-in for the interactive map. Clicks are fed in with Click.
type Map struct {
	mu          sync.Mutex
	center      model.Coordinate
	zoom        int
	markers     []renderer.Marker
	selection   *model.Coordinate
	interactive bool
	nextID      int
	handlers    []clickHandler
}

func NewMap() *Map {
	return &Map{center: DefaultCenter, zoom: DefaultZoom, interactive: true}
}

func (m *Map) ClearMarkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = m.markers[:0]
}

func (m *Map) AddMarker(mk renderer.Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, mk)
}

func (m *Map) Markers() []renderer.Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]renderer.Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

func (m *Map) OnceClick(fn func(model.Coordinate)) workflow.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.handlers = append(m.handlers, clickHandler{id: m.nextID, fn: fn})
	return &subscription{m: m, id: m.nextID}
}

// Click delivers a map click to every waiting one-shot handler and recentres the map.
// It reports whether any handler received it.
func (m *Map) Click(c model.Coordinate) bool {
	m.mu.Lock()
	pending := m.handlers
	m.handlers = nil
	m.mu.Unlock()

	for _, h := range pending {
		h.fn(c)
	}
	return len(pending) > 0
}

func (m *Map) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *Map) ShowSelection(c model.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = &c
	m.center = c
	if m.zoom < 15 {
		m.zoom = 15
	}
}

func (m *Map) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = nil
}

func (m *Map) Selection() (model.Coordinate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selection == nil {
		return model.Coordinate{}, false
	}
	return *m.selection, true
}

func (m *Map) SetInteractive(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactive = enabled
}

func (m *Map) Interactive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactive
}

// Render writes the markers as a table, newest issue first.
func (m *Map) Render(w io.Writer) error {
	markers := m.Markers()
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Detail.CreatedAt.After(markers[j].Detail.CreatedAt)
	})

	m.mu.Lock()
	center, zoom := m.center, m.zoom
	m.mu.Unlock()

	if _, err := fmt.Fprintf(w, "map centre %.4f,%.4f zoom %d, %d issue(s)\n",
		center.Latitude, center.Longitude, zoom, len(markers)); err != nil {
		return err
	}
	if len(markers) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tLAT\tLNG\tLABEL\tIMAGE")
	for _, mk := range markers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.6f\t%.6f\t%s\t%s\n",
			mk.IssueID,
			mk.Detail.Category,
			mk.Detail.Status,
			mk.Position.Latitude,
			mk.Position.Longitude,
			mk.Label,
			mk.Detail.ImageURL,
		)
	}
	return tw.Flush()
}

type subscription struct {
	m  *Map
	id int
}

func (s *subscription) Cancel() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for i, h := range s.m.handlers {
		if h.id == s.id {
			s.m.handlers = append(s.m.handlers[:i], s.m.handlers[i+1:]...)
			return
		}
	}
}
