// Package session holds the live state of forms being filled in and drives
// their submission.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/faciam-dev/formportal/internal/draft"
	"github.com/faciam-dev/formportal/internal/events"
	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/metrics"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// RestoredNotice is shown once after a draft was loaded into a form.
const RestoredNotice = "Your previous progress has been restored."

// Form is the state of one form for one visitor: its values, the last
// validation errors and the draft that mirrors the values.
type Form struct {
	id       string
	store    draft.Store
	debounce *draft.Debouncer

	// dmu orders draft writes against ClearDraft.
	dmu sync.Mutex

	mu     sync.Mutex
	values formschema.Values
	errors formengine.Errors
	notice string
	state  State
	// epoch advances on ClearDraft; writes scheduled in an older epoch are
	// dropped.
	epoch    uint64
	lastUsed time.Time
}

// NewForm returns an empty form whose draft lives in store.
func NewForm(formID string, store draft.Store, debounce *draft.Debouncer) *Form {
	if debounce == nil {
		debounce = draft.NewDebouncer(draft.DefaultDelay, nil)
	}
	return &Form{
		id:       formID,
		store:    store,
		debounce: debounce,
		values:   formschema.Values{},
		errors:   formengine.Errors{},
		lastUsed: time.Now(),
	}
}

// ID returns the form id.
func (f *Form) ID() string { return f.id }

// Values returns a copy of the current values.
func (f *Form) Values() formschema.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.Clone()
}

// Errors returns a copy of the current field errors.
func (f *Form) Errors() formengine.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(formengine.Errors, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Set stores one value, clears that field's error and schedules a draft write.
func (f *Form) Set(id string, value any) {
	f.Merge(formschema.Values{id: value})
}

// Merge stores several values at once. It behaves like calling Set for each
// of them but schedules a single draft write.
func (f *Form) Merge(values formschema.Values) {
	if len(values) == 0 {
		return
	}
	f.mu.Lock()
	for id, v := range values {
		f.values[id] = v
		delete(f.errors, id)
	}
	snapshot := f.values.Clone()
	epoch := f.epoch
	f.lastUsed = time.Now()
	f.mu.Unlock()
	f.schedule(snapshot, epoch)
}

func (f *Form) schedule(snapshot formschema.Values, epoch uint64) {
	if len(snapshot) == 0 {
		return
	}
	f.debounce.Schedule(func() { f.persist(snapshot, epoch) })
}

func (f *Form) persist(values formschema.Values, epoch uint64) {
	f.dmu.Lock()
	defer f.dmu.Unlock()
	f.mu.Lock()
	stale := epoch != f.epoch
	f.mu.Unlock()
	if stale {
		metrics.DraftWrites.WithLabelValues("dropped").Inc()
		return
	}
	if err := draft.Save(context.Background(), f.store, f.id, values); err != nil {
		metrics.DraftWrites.WithLabelValues("error").Inc()
		logger.L.Error("save draft", "form", f.id, "err", err)
		return
	}
	metrics.DraftWrites.WithLabelValues("ok").Inc()
}

// SetErrors replaces the field errors.
func (f *Form) SetErrors(errs formengine.Errors) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = formengine.Errors{}
	for k, v := range errs {
		f.errors[k] = v
	}
}

// Load replaces the values with the stored draft, if there is one. A draft
// that cannot be decoded is ignored.
func (f *Form) Load(ctx context.Context) (bool, error) {
	values, ok, err := draft.Load(ctx, f.store, f.id)
	if errors.Is(err, draft.ErrCorrupt) {
		logger.L.Warn("ignore corrupt draft", "form", f.id, "err", err)
		return false, nil
	}
	if err != nil || !ok || len(values) == 0 {
		return false, err
	}
	f.mu.Lock()
	f.values = values
	f.errors = formengine.Errors{}
	f.notice = RestoredNotice
	f.mu.Unlock()
	events.Emit(ctx, events.New(events.DraftRestored, map[string]any{"formId": f.id}))
	return true, nil
}

// ClearDraft drops any pending write and deletes the stored draft. A write
// already in progress finishes first and is then removed with the rest.
func (f *Form) ClearDraft(ctx context.Context) error {
	f.debounce.Stop()
	f.mu.Lock()
	f.epoch++
	f.mu.Unlock()
	f.dmu.Lock()
	defer f.dmu.Unlock()
	return draft.Remove(ctx, f.store, f.id)
}

// touch marks the form as used now.
func (f *Form) touch() {
	f.mu.Lock()
	f.lastUsed = time.Now()
	f.mu.Unlock()
}

// idleSince reports whether the form was last used before cutoff and is not
// in the middle of a submission.
func (f *Form) idleSince(cutoff time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUsed.Before(cutoff) && f.state != Submitting && f.state != Validating
}

// Flush writes a pending draft immediately.
func (f *Form) Flush() { f.debounce.Flush() }

// TakeNotice returns the pending notice and clears it.
func (f *Form) TakeNotice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.notice
	f.notice = ""
	return n
}

func (f *Form) setNotice(n string) {
	f.mu.Lock()
	f.notice = n
	f.mu.Unlock()
}
