package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"issue-map/internal/model"
	"issue-map/internal/workflow"
	"sync"
)

// Form tracks whether the report form is on screen.
type Form struct {
	mu      sync.Mutex
	out     io.Writer
	visible bool
}

func NewForm(out io.Writer) *Form {
	return &Form{out: out}
}

func (f *Form) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	fmt.Fprintln(f.out, "report form opened")
}

func (f *Form) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	fmt.Fprintln(f.out, "report form closed")
}

func (f *Form) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Spinner is the busy indicator shown while a report is uploading.
type Spinner struct {
	mu     sync.Mutex
	out    io.Writer
	active int
}

func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out}
}

func (s *Spinner) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	if s.active == 1 {
		fmt.Fprintln(s.out, "submitting...")
	}
}

func (s *Spinner) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == 0 {
		return
	}
	s.active--
}

func (s *Spinner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

// Alerts prints user-facing failures, one line each.
type Alerts struct {
	mu  sync.Mutex
	out io.Writer
}

func NewAlerts(out io.Writer) *Alerts {
	return &Alerts{out: out}
}

func (a *Alerts) Notify(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "error: %s\n", Message(err))
}

// Message turns a workflow error into the text shown to the user.
func Message(err error) string {
	var (
		verr *workflow.ValidationError
		lerr *workflow.LocationUnavailableError
		nerr *workflow.NetworkError
		rerr *workflow.SubmissionRejectedError
	)
	switch {
	case errors.As(err, &verr):
		return "Please fill all required fields: " + verr.Error()
	case errors.As(err, &lerr):
		return "Could not get your location, pick it on the map instead (" + lerr.Err.Error() + ")"
	case errors.As(err, &nerr):
		return "Error submitting issue, check your connection and try again"
	case errors.As(err, &rerr):
		return "Error: " + rerr.Reason
	default:
		return err.Error()
	}
}

// StaticLocator answers GPS requests with a fixed position. Without one, geolocation is
// reported as unsupported.
type StaticLocator struct {
	Position *model.Coordinate
}

func (l StaticLocator) CurrentPosition(ctx context.Context) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, fmt.Errorf("%w: %v", workflow.ErrLocationTimeout, err)
	}
	if l.Position == nil {
		return model.Coordinate{}, workflow.ErrLocationUnsupported
	}
	return *l.Position, nil
}
