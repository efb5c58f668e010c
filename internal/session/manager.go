package session

import (
	"context"
	"sync"
	"time"

	"github.com/faciam-dev/formportal/internal/draft"
	"github.com/faciam-dev/formportal/internal/logger"
)

type formKey struct{ ns, id string }

// entry is a live form plus a channel closed once its draft was loaded.
type entry struct {
	form  *Form
	ready chan struct{}
}

// Manager keeps the live forms of every visitor. Each visitor is identified
// by a namespace under which its drafts are stored.
type Manager struct {
	store draft.Store
	delay time.Duration
	clock draft.Clock

	mu    sync.Mutex
	forms map[formKey]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithDelay sets the draft debounce delay.
func WithDelay(d time.Duration) Option { return func(m *Manager) { m.delay = d } }

// WithClock sets the clock used for draft debouncing.
func WithClock(c draft.Clock) Option { return func(m *Manager) { m.clock = c } }

// NewManager returns a Manager persisting drafts to store.
func NewManager(store draft.Store, opts ...Option) *Manager {
	m := &Manager{store: store, delay: draft.DefaultDelay, forms: map[formKey]*entry{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open returns the live form for (ns, formID), creating it and restoring its
// draft on first use. Callers racing the first Open wait until the draft is
// loaded. A draft that cannot be read leaves the form empty.
func (m *Manager) Open(ctx context.Context, ns, formID string) *Form {
	k := formKey{ns, formID}
	m.mu.Lock()
	e, ok := m.forms[k]
	if !ok {
		e = &entry{
			form:  NewForm(formID, draft.Namespace(m.store, ns), draft.NewDebouncer(m.delay, m.clock)),
			ready: make(chan struct{}),
		}
		m.forms[k] = e
	}
	m.mu.Unlock()
	if ok {
		<-e.ready
		e.form.touch()
		return e.form
	}
	if _, err := e.form.Load(ctx); err != nil {
		logger.L.Error("load draft", "form", formID, "err", err)
	}
	close(e.ready)
	return e.form
}

// Drop forgets the live form. Its stored draft is left alone.
func (m *Manager) Drop(ns, formID string) {
	k := formKey{ns, formID}
	m.mu.Lock()
	e := m.forms[k]
	delete(m.forms, k)
	m.mu.Unlock()
	if e != nil {
		e.form.Flush()
	}
}

// Sweep forgets every form not used since cutoff after writing its pending
// draft, and returns how many were dropped. Forms being submitted are kept.
func (m *Manager) Sweep(cutoff time.Time) int {
	var idle []*Form
	m.mu.Lock()
	for k, e := range m.forms {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.form.idleSince(cutoff) {
			idle = append(idle, e.form)
			delete(m.forms, k)
		}
	}
	m.mu.Unlock()
	for _, f := range idle {
		f.Flush()
	}
	return len(idle)
}

// Len returns the number of live forms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forms)
}

// Close writes every pending draft.
func (m *Manager) Close() {
	m.mu.Lock()
	forms := make([]*Form, 0, len(m.forms))
	for _, e := range m.forms {
		forms = append(forms, e.form)
	}
	m.mu.Unlock()
	for _, f := range forms {
		f.Flush()
	}
}
