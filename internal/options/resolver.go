// Package options resolves option lists that depend on another field's value.
package options

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faciam-dev/formportal/internal/metrics"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// Fetcher loads an option list from a backend endpoint.
type Fetcher interface {
	FetchOptions(ctx context.Context, method, endpoint, param, value string) ([]string, error)
}

// Result is the outcome of one resolution.
type Result struct {
	Options []string
	// Stale is set when a newer request for the same field was issued while
	// this one was in flight; Options then holds the newest known list.
	Stale bool
	// Err is the fetch error, if any. Options is empty in that case.
	Err error
}

// Resolver fetches dynamic options. Every call hits the backend; nothing is
// memoized. Responses are sequenced per field so an older, slower response
// never overwrites a newer one.
type Resolver struct {
	fetcher Fetcher
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	gen    map[string]uint64
	latest map[string][]string
	used   map[string]time.Time
}

// New returns a Resolver. A nil logger discards log output.
func New(f Fetcher, logger *zap.SugaredLogger) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Resolver{
		fetcher: f,
		logger:  logger,
		gen:     map[string]uint64{},
		latest:  map[string][]string{},
		used:    map[string]time.Time{},
	}
}

func key(scope, fieldID string) string { return scope + "/" + fieldID }

// Resolve returns the options for field given the current values. scope
// separates independent form sessions.
func (r *Resolver) Resolve(ctx context.Context, scope string, field *formschema.Field, values formschema.Values) Result {
	d := field.Dynamic()
	if d == nil {
		return Result{Options: field.Options}
	}
	k := key(scope, field.ID)
	dep := values.Text(d.DependsOn)
	if strings.TrimSpace(dep) == "" {
		r.mu.Lock()
		defer r.mu.Unlock()
		if opts, ok := r.latest[k]; ok {
			r.used[k] = time.Now()
			return Result{Options: opts}
		}
		return Result{Options: field.Options}
	}

	r.mu.Lock()
	r.gen[k]++
	gen := r.gen[k]
	r.used[k] = time.Now()
	r.mu.Unlock()

	opts, err := r.fetcher.FetchOptions(ctx, d.HTTPMethod(), d.Endpoint, d.DependsOn, dep)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen < r.gen[k] {
		metrics.OptionFetches.WithLabelValues(field.ID, "stale").Inc()
		cur, ok := r.latest[k]
		if !ok {
			cur = field.Options
		}
		return Result{Options: cur, Stale: true, Err: err}
	}
	if err != nil {
		metrics.OptionFetches.WithLabelValues(field.ID, "error").Inc()
		r.logger.Errorw("fetch options", "field", field.ID, "endpoint", d.Endpoint, "err", err)
		r.latest[k] = []string{}
		r.used[k] = time.Now()
		return Result{Options: []string{}, Err: err}
	}
	metrics.OptionFetches.WithLabelValues(field.ID, "ok").Inc()
	if opts == nil {
		opts = []string{}
	}
	r.latest[k] = opts
	r.used[k] = time.Now()
	return Result{Options: opts}
}

// ResolveAll resolves every visible dynamic field concurrently. The result is
// keyed by field id and only contains dynamic fields.
func (r *Resolver) ResolveAll(ctx context.Context, scope string, structures []formschema.Structure, values formschema.Values) map[string][]string {
	visible := formengine.VisibleSet(structures, values)
	var fields []*formschema.Field
	for _, f := range formschema.Flatten(structures...) {
		if visible[f.ID] && f.Dynamic() != nil {
			fields = append(fields, f)
		}
	}
	out := make(map[string][]string, len(fields))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range fields {
		wg.Add(1)
		go func(f *formschema.Field) {
			defer wg.Done()
			res := r.Resolve(ctx, scope, f, values)
			mu.Lock()
			out[f.ID] = res.Options
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return out
}

// Forget drops everything remembered for scope.
func (r *Resolver) Forget(scope string) {
	prefix := scope + "/"
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.used {
		if strings.HasPrefix(k, prefix) {
			r.drop(k)
		}
	}
	for k := range r.gen {
		if strings.HasPrefix(k, prefix) {
			r.drop(k)
		}
	}
}

// Sweep drops the state of fields not resolved since cutoff and returns how
// many were dropped.
func (r *Resolver) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, at := range r.used {
		if at.Before(cutoff) {
			r.drop(k)
			n++
		}
	}
	return n
}

// Len returns the number of fields with remembered state.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.used)
}

func (r *Resolver) drop(k string) {
	delete(r.gen, k)
	delete(r.latest, k)
	delete(r.used, k)
}
