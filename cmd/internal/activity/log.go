// Package activity is the append-only event log behind each list's history.
//
// Appends happen after the triggering mutation commits and never fail it:
// a failed write is logged and counted, then dropped. Stored events are
// handed to a Publisher for the live feed.
package activity

import (
	"context"
	"io"
	"log/slog"
	"time"

	"tasklist/cmd/identity/ids"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/metrics"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Publisher receives every stored event.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// Log appends and pages list events.
type Log struct {
	store   store.Store
	authz   *authz.Engine
	pub     Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithPublisher fans appended events out to live subscribers.
func WithPublisher(p Publisher) Option { return func(l *Log) { l.pub = p } }

// WithMetrics records append and publish counters.
func WithMetrics(m *metrics.Metrics) Option { return func(l *Log) { l.metrics = m } }

// WithLogger sets the logger for append and publish failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Log) {
		if log != nil {
			l.log = log
		}
	}
}

// WithAuthorizer sets the engine that gates History.
func WithAuthorizer(e *authz.Engine) Option {
	return func(l *Log) {
		if e != nil {
			l.authz = e
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a Log over st.
func New(st store.Store, opts ...Option) *Log {
	l := &Log{
		store: st,
		authz: authz.NewEngine(nil),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Append records an event for listID. actorID may be empty.
// It does not return an error: the mutation it describes has already committed.
func (l *Log) Append(ctx context.Context, listID string, typ model.EventType, data map[string]any, actorID string) {
	// the caller's cancellation must not drop a committed mutation's record
	ctx = context.WithoutCancel(ctx)

	now := l.now()
	id, err := ids.NewULID(now)
	if err != nil {
		l.fail(listID, typ, err)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	e := model.Event{
		ID:     id,
		ListID: listID,
		Type:   typ,
		At:     model.Millis(now),
		Data:   data,
	}
	if actorID != "" {
		e.ActorID = &actorID
	}

	stored, err := l.store.AppendEvent(ctx, e)
	if err != nil {
		l.fail(listID, typ, err)
		return
	}
	l.metrics.EventAppended(string(typ))

	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(ctx, stored); err != nil {
		l.log.Warn("event.publish.fail", "list_id", listID, "event_type", string(typ), "err", err)
		return
	}
	l.metrics.EventPublished()
}

func (l *Log) fail(listID string, typ model.EventType, err error) {
	l.metrics.EventAppendFailed(string(typ))
	l.log.Error("event.append.fail", "list_id", listID, "event_type", string(typ), "err", err)
}
