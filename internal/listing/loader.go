package listing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/metrics"
	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// LoadFailedNotice is shown when the listing could not be fetched.
const LoadFailedNotice = "Failed to load applications. Please try again."

// EmptyMessage is shown instead of rows when there are none.
const EmptyMessage = "No applications found"

// Lister fetches one page of applications.
type Lister interface {
	ListSubmissions(ctx context.Context, q client.ListQuery) (client.Page, error)
}

// View is one loaded page together with the state it was loaded for.
type View struct {
	State State
	Rows  []formschema.Application
	// Notice is set when loading failed.
	Notice string
	// Stale is set when a newer load for the same scope started while this
	// one was in flight. Rows are dropped in that case.
	Stale bool
}

// Loader reloads the listing. Loads are sequenced per scope so that only the
// latest request's response is applied.
type Loader struct {
	lister Lister

	mu   sync.Mutex
	gen  map[string]uint64
	used map[string]time.Time
}

// NewLoader returns a Loader backed by l.
func NewLoader(l Lister) *Loader {
	return &Loader{lister: l, gen: map[string]uint64{}, used: map[string]time.Time{}}
}

// Sweep forgets scopes that have not loaded since cutoff and returns how
// many were dropped.
func (l *Loader) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for scope, at := range l.used {
		if at.Before(cutoff) {
			delete(l.used, scope)
			delete(l.gen, scope)
			n++
		}
	}
	return n
}

// Len returns the number of scopes being sequenced.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.gen)
}

// Load fetches the page described by st. The returned view carries st with
// Total updated from the response.
func (l *Loader) Load(ctx context.Context, scope string, st State) View {
	l.mu.Lock()
	l.gen[scope]++
	gen := l.gen[scope]
	l.used[scope] = time.Now()
	l.mu.Unlock()

	page, err := l.lister.ListSubmissions(ctx, st.Query())

	l.mu.Lock()
	stale := gen < l.gen[scope]
	l.mu.Unlock()
	if stale {
		metrics.ListingFetches.WithLabelValues("stale").Inc()
		return View{State: st, Stale: true}
	}
	if err != nil {
		metrics.ListingFetches.WithLabelValues("error").Inc()
		logger.L.Error("load applications", "err", err)
		st.Total = 0
		return View{State: st, Notice: LoadFailedNotice}
	}
	metrics.ListingFetches.WithLabelValues("ok").Inc()
	if page.Total != nil {
		st.Total = *page.Total
	} else {
		logger.L.Warn("listing response has no total, paging by page rows", "rows", len(page.Data))
		st.Total = len(page.Data)
	}
	return View{State: st, Rows: page.Data}
}

// Empty reports whether there are no rows to show.
func (v View) Empty() bool { return len(v.Rows) == 0 }

// Cell returns the display text of column accessor for app. Accessors ending
// in "At" are shown as date and time.
func Cell(app formschema.Application, accessor string) string {
	var v any
	switch accessor {
	case "id":
		v = app.ID
	case "type":
		v = app.Type
	case "status":
		v = app.Status
	case "createdAt":
		v = app.CreatedAt
	case "updatedAt":
		v = app.UpdatedAt
	default:
		v = app.Data[accessor]
	}
	if v == nil {
		return ""
	}
	if strings.HasSuffix(accessor, "At") {
		return formatTime(v)
	}
	return formschema.Values{accessor: v}.Text(accessor)
}

const timeLayout = "2006-01-02 15:04:05"

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Local().Format(timeLayout)
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return t
		}
		return parsed.Local().Format(timeLayout)
	}
	return fmt.Sprint(v)
}
