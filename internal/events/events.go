// Package events publishes portal domain events to external sinks.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/pkg/util"
)

// Event names emitted by the portal.
const (
	ApplicationSubmitted    = "portal.application.submitted"
	ApplicationSubmitFailed = "portal.application.submit_failed"
	DraftRestored           = "portal.draft.restored"
)

// Default is the global dispatcher used by Emit.
var Default *Dispatcher

// Event represents a notification payload.
type Event struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
	ID   string    `json:"id"`
}

// New stamps an event with a fresh id and the current time.
func New(name string, data any) Event {
	return Event{Name: name, Time: time.Now().UTC(), Data: data, ID: uuid.NewString()}
}

// FormID returns the form the event concerns, taken from a "formId" entry in
// Data, or "" when there is none.
func (e Event) FormID() string {
	switch d := e.Data.(type) {
	case map[string]any:
		if id, ok := d["formId"].(string); ok {
			return id
		}
	case map[string]string:
		return d["formId"]
	}
	return ""
}

// Topic is the event name without the "portal." prefix.
func (e Event) Topic() string { return strings.TrimPrefix(e.Name, "portal.") }

// Envelope is the body sinks deliver. FormID is lifted out of Data so
// consumers can route on it without decoding the payload.
type Envelope struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurredAt"`
	FormID     string    `json:"formId,omitempty"`
	Data       any       `json:"data,omitempty"`
}

// Envelope wraps e for delivery.
func (e Event) Envelope() Envelope {
	return Envelope{ID: e.ID, Event: e.Name, OccurredAt: e.Time, FormID: e.FormID(), Data: e.Data}
}

// Sink publishes events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// DLQ stores failed events.
type DLQ interface {
	Store(ctx context.Context, e Event, attempts int, lastErr string) error
}

// Dispatcher broadcasts events to multiple sinks with retries.
type Dispatcher struct {
	sinks        []Sink
	maxAttempts  int
	initialDelay time.Duration
	dlq          DLQ
	wg           sync.WaitGroup
}

// Config provides dispatcher settings.
type Config struct {
	Sinks struct {
		Webhook WebhookConfig `yaml:"webhook"`
		Redis   RedisConfig   `yaml:"redis"`
		Kafka   KafkaConfig   `yaml:"kafka"`
	} `yaml:"sinks"`
	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// NewDispatcher creates a dispatcher from sinks and retry config.
func NewDispatcher(cfg Config, dlq DLQ, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{maxAttempts: 3, initialDelay: time.Second}
	if cfg.Retry.MaxAttempts > 0 {
		d.maxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay > 0 {
		d.initialDelay = cfg.Retry.InitialDelay
	}
	d.sinks = append(d.sinks, sinks...)
	d.dlq = dlq
	return d
}

// Emit sends an event using the global dispatcher if set.
func Emit(ctx context.Context, e Event) {
	if Default != nil {
		Default.Dispatch(ctx, e)
	}
}

// Dispatch sends the event to all sinks asynchronously. Delivery outlives the
// request, so the context's values are kept but its cancellation is not.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	ctx = context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			d.retrySend(ctx, sink, e)
		}(s)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) retrySend(ctx context.Context, s Sink, e Event) {
	delay := d.initialDelay
	var err error
	for i := 1; i <= d.maxAttempts; i++ {
		if err = s.Emit(ctx, e); err == nil {
			return
		}
		if i < d.maxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	logger.L.Warn("event delivery failed", "event", e.Name, "id", e.ID, "err", err)
	if d.dlq != nil {
		if derr := d.dlq.Store(ctx, e, d.maxAttempts, err.Error()); derr != nil {
			logger.L.Error("store failed event", "event", e.Name, "err", derr)
		}
	}
}

// SQLDLQ stores failed events in the database. Driver selects the dialect
// as for draft.SQLStore.
type SQLDLQ struct {
	DB          *sql.DB
	Driver      string
	TablePrefix string
}

func (q *SQLDLQ) table() string { return q.TablePrefix + "events_failed" }

// Migrate creates the failed events table when missing.
func (q *SQLDLQ) Migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch q.Driver {
	case util.BackendMySQL:
		id = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case util.BackendPostgres:
		id = "BIGSERIAL PRIMARY KEY"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	name TEXT NOT NULL,
	payload TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	last_error TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, q.table(), id)
	_, err := q.DB.ExecContext(ctx, stmt)
	return err
}

// Store inserts the failed event.
func (q *SQLDLQ) Store(ctx context.Context, e Event, attempts int, lastErr string) error {
	if q == nil || q.DB == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ph := func(n int) string { return util.Placeholder(q.Driver, n) }
	stmt := fmt.Sprintf("INSERT INTO %s(name, payload, attempts, last_error) VALUES (%s, %s, %s, %s)", q.table(), ph(1), ph(2), ph(3), ph(4))
	_, err = q.DB.ExecContext(ctx, stmt, e.Name, string(data), attempts, lastErr)
	return err
}
