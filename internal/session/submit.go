package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/faciam-dev/formportal/internal/events"
	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/metrics"
	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// Notices shown after a submission attempt.
const (
	SuccessNotice = "Your application has been submitted successfully."
	FailureNotice = "There was an error submitting your application. Please try again."
)

// ListingPath is where a visitor lands after a successful submission.
const ListingPath = "/applications"

// ErrBusy is returned when a submission for the same form is already running.
var ErrBusy = errors.New("submission in progress")

// State is the position of a form in the submission flow.
type State int

const (
	Idle State = iota
	Validating
	Invalid
	Submitting
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Invalid:
		return "invalid"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Backend accepts completed applications.
type Backend interface {
	Submit(ctx context.Context, formID string, data formschema.Values) (client.Submission, error)
}

// Result describes the outcome of Submit.
type Result struct {
	// Errors is set when validation blocked the submission.
	Errors formengine.Errors
	// Summary is the toast text for a blocked submission.
	Summary string
	// Notice is the toast text after the backend was called.
	Notice string
	// Redirect is the path to navigate to after success.
	Redirect   string
	Submission client.Submission
	// Err is the backend failure, if any. Values and draft are kept.
	Err error
}

// OK reports whether the application was accepted.
func (r Result) OK() bool { return r.Redirect != "" }

// State returns the submission state of the form.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Form) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Validating || f.state == Submitting {
		return false
	}
	f.state = Validating
	return true
}

// Submitter validates forms and hands valid ones to the backend.
type Submitter struct {
	Backend Backend
}

// Submit runs the submission flow for f against structures. Only ErrBusy is
// returned as an error; every other outcome is described by the Result.
func (s *Submitter) Submit(ctx context.Context, f *Form, structures []formschema.Structure) (Result, error) {
	if !f.begin() {
		return Result{}, ErrBusy
	}
	values := f.Values()
	if errs := formengine.Validate(structures, values); !errs.OK() {
		f.SetErrors(errs)
		f.setState(Invalid)
		metrics.Submissions.WithLabelValues(f.id, "invalid").Inc()
		f.setState(Idle)
		return Result{Errors: errs, Summary: formengine.SummaryMessage}, nil
	}
	f.SetErrors(nil)
	f.setState(Submitting)

	sub, err := s.Backend.Submit(ctx, f.id, values)
	if err != nil {
		f.setState(Idle)
		f.setNotice(FailureNotice)
		metrics.Submissions.WithLabelValues(f.id, "error").Inc()
		logger.L.Error("submit application", "form", f.id, "err", err)
		events.Emit(ctx, events.New(events.ApplicationSubmitFailed, map[string]any{"formId": f.id, "error": err.Error()}))
		return Result{Notice: FailureNotice, Err: err}, nil
	}

	if err := f.ClearDraft(ctx); err != nil {
		logger.L.Warn("clear draft after submit", "form", f.id, "err", err)
	}
	f.setState(Submitted)
	f.setNotice(SuccessNotice)
	metrics.Submissions.WithLabelValues(f.id, "ok").Inc()
	events.Emit(ctx, events.New(events.ApplicationSubmitted, map[string]any{"formId": f.id, "submissionId": sub.ID()}))
	return Result{Notice: SuccessNotice, Redirect: ListingPath, Submission: sub}, nil
}
