// Package workflow drives the report form: choosing a location by GPS or by a map click,
// filling in the draft and submitting it.
package workflow

import (
	"context"
	"errors"
	"issue-map/internal/apiclient"
	"issue-map/internal/model"
	"sync"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateIdle State = iota
	StateGPSPending
	StateAwaitingPick
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGPSPending:
		return "gps_pending"
	case StateAwaitingPick:
		return "awaiting_pick"
	case StateSelected:
		return "selected"
	default:
		return "unknown"
	}
}

type Locator interface {
	CurrentPosition(ctx context.Context) (model.Coordinate, error)
}

type Subscription interface {
	Cancel()
}

// MapPicker is the part of the map widget the form talks to. Implementations must not
// call back into the Controller from ShowSelection, ClearSelection, SetInteractive or
// Subscription.Cancel.
type MapPicker interface {
	// OnceClick registers fn for the next click only.
	OnceClick(fn func(model.Coordinate)) Subscription
	ShowSelection(c model.Coordinate)
	ClearSelection()
	SetInteractive(enabled bool)
}

type Modal interface {
	Show()
	Hide()
}

type Indicator interface {
	Show()
	Hide()
}

type Notifier interface {
	Notify(err error)
}

type IssueCreator interface {
	CreateIssue(ctx context.Context, s apiclient.Submission) (*model.Issue, error)
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type Deps struct {
	Map       MapPicker
	Locator   Locator
	Modal     Modal
	Indicator Indicator
	Notifier  Notifier
	Creator   IssueCreator
	Refresher Refresher
	Logger    *logrus.Logger
}

type Controller struct {
	deps Deps

	mu         sync.Mutex
	open       bool
	generation uint64
	state      State
	selection  uint64
	pick       Subscription
	draft      Draft
	submitting bool
}

func New(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// Open starts a fresh draft, shows the form and locks the map underneath it.
func (c *Controller) Open() {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return
	}
	c.open = true
	c.generation++
	c.draft = Draft{}
	c.submitting = false
	c.resetLocked()
	c.mu.Unlock()

	c.deps.Modal.Show()
	c.deps.Map.SetInteractive(false)
	c.deps.Logger.Debug("report form opened")
}

// Close discards the draft and hides the form. Map interactions are re-enabled even when
// the form was not open.
func (c *Controller) Close() {
	defer c.deps.Map.SetInteractive(true)

	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	c.generation++
	c.draft = Draft{}
	c.submitting = false
	c.resetLocked()
	c.mu.Unlock()

	c.deps.Modal.Hide()
	c.deps.Logger.Debug("report form closed")
}

// Reset clears the chosen location and cancels any pending map pick.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// RequestGPS asks the device for its position. A successful fix replaces any earlier
// selection; a failure returns to idle with a *LocationUnavailableError. The result of a
// request overtaken by another selection, a reset or a close is dropped and
// ErrSelectionSuperseded is returned.
func (c *Controller) RequestGPS(ctx context.Context) (model.Coordinate, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return model.Coordinate{}, ErrModalClosed
	}
	c.selection++
	token := c.selection
	c.cancelPickLocked()
	c.state = StateGPSPending
	c.mu.Unlock()

	pos, err := c.deps.Locator.CurrentPosition(ctx)
	if err == nil {
		err = pos.Validate()
	}

	c.mu.Lock()
	if token != c.selection {
		c.mu.Unlock()
		return model.Coordinate{}, ErrSelectionSuperseded
	}
	if err != nil {
		c.state = StateIdle
		c.draft.Coordinate = nil
		c.deps.Map.ClearSelection()
		c.mu.Unlock()

		lerr := &LocationUnavailableError{Err: err}
		c.deps.Logger.WithError(err).Info("device location unavailable")
		c.deps.Notifier.Notify(lerr)
		return model.Coordinate{}, lerr
	}
	c.commitLocked(pos)
	c.mu.Unlock()
	return pos, nil
}

// PickOnMap waits for exactly one map click. Leaving the awaiting state by any route
// cancels the click subscription.
func (c *Controller) PickOnMap() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrModalClosed
	}
	c.selection++
	token := c.selection
	c.cancelPickLocked()
	c.state = StateAwaitingPick
	c.mu.Unlock()

	sub := c.deps.Map.OnceClick(func(pos model.Coordinate) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if token != c.selection || c.state != StateAwaitingPick {
			return
		}
		c.commitLocked(pos)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.selection || c.state != StateAwaitingPick {
		// Superseded, or the click already landed while registering.
		sub.Cancel()
		return nil
	}
	c.pick = sub
	return nil
}

func (c *Controller) SetCategory(category string) error {
	return c.editDraft(func(d *Draft) { d.Category = category })
}

func (c *Controller) SetTitle(title string) error {
	return c.editDraft(func(d *Draft) { d.Title = title })
}

func (c *Controller) SetDescription(description string) error {
	return c.editDraft(func(d *Draft) { d.Description = description })
}

func (c *Controller) AttachImage(img model.Image) error {
	return c.editDraft(func(d *Draft) { d.Image = &img })
}

// Submit sends the draft once. The busy indicator is hidden on every return path. On
// success the issue list is refreshed and the form closed; on failure the form and draft
// stay as they are.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return ErrModalClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	if verr := c.draft.validate(); verr != nil {
		c.mu.Unlock()
		c.deps.Notifier.Notify(verr)
		return verr
	}
	sub := c.draft.submission()
	gen := c.generation
	c.submitting = true
	c.mu.Unlock()

	c.deps.Indicator.Show()
	defer c.deps.Indicator.Hide()
	defer c.finishSubmit(gen)

	created, err := c.deps.Creator.CreateIssue(ctx, sub)
	if err != nil {
		err = classify(err)
		c.deps.Logger.WithError(err).Warn("issue submission failed")
		c.deps.Notifier.Notify(err)
		return err
	}

	c.deps.Logger.WithFields(logrus.Fields{
		"issue_id":   created.ID,
		"issue_type": sub.Category,
	}).Info("issue submitted")

	if err := c.deps.Refresher.Refresh(ctx); err != nil {
		c.deps.Logger.WithError(err).Warn("refresh after submit failed")
	}
	c.closeGeneration(gen)
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.clone()
}

func (c *Controller) editDraft(fn func(d *Draft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrModalClosed
	}
	fn(&c.draft)
	return nil
}

func (c *Controller) finishSubmit(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.submitting = false
	}
}

// closeGeneration closes the form only if it is still the instance that was submitted.
func (c *Controller) closeGeneration(gen uint64) {
	c.mu.Lock()
	current := c.open && gen == c.generation
	c.mu.Unlock()
	if current {
		c.Close()
	}
}

func (c *Controller) commitLocked(pos model.Coordinate) {
	c.cancelPickLocked()
	c.state = StateSelected
	c.draft.Coordinate = &pos
	c.deps.Map.ShowSelection(pos)
	c.deps.Logger.WithFields(logrus.Fields{
		"latitude":  pos.Latitude,
		"longitude": pos.Longitude,
	}).Debug("location selected")
}

func (c *Controller) resetLocked() {
	c.selection++
	c.cancelPickLocked()
	c.state = StateIdle
	c.draft.Coordinate = nil
	c.deps.Map.ClearSelection()
}

func (c *Controller) cancelPickLocked() {
	if c.pick != nil {
		c.pick.Cancel()
		c.pick = nil
	}
}

func classify(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return &SubmissionRejectedError{StatusCode: apiErr.StatusCode, Reason: apiErr.Message}
	}
	var transportErr *apiclient.TransportError
	if errors.As(err, &transportErr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Err: err}
	}
	return &SubmissionRejectedError{Reason: err.Error()}
}
