// Package ingest validates telemetry events and writes them through the
// store, one event at a time or as an ordered batch.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/agentops/internal/models"
	"github.com/openclaw/agentops/internal/store"
)

// DefaultMaxBatchEvents bounds a batch when no limit is configured.
const DefaultMaxBatchEvents = 1000

// Notifier is told about every session that reaches a terminal status.
// Implementations must not block.
type Notifier interface {
	SessionCompleted(sess *models.Session)
}

// Result identifies the row an event created or updated. IDField is the
// response key: session_id, step_id or id.
type Result struct {
	IDField string
	ID      string
}

// Service writes validated events to the store.
type Service struct {
	store    *store.Store
	notifier Notifier
	maxBatch int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier registers n for completed sessions.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMaxBatchEvents caps the number of events accepted in one batch.
func WithMaxBatchEvents(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithClock overrides the clock used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service writing to st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{store: st, maxBatch: DefaultMaxBatchEvents, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle decodes, validates and writes one event of the given kind.
// Validation failures are *ValidationError and never reach the store.
func (s *Service) Handle(ctx context.Context, kind string, raw []byte) (Result, error) {
	switch kind {
	case KindSessionStarted:
		var ev SessionStarted
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		if err := s.store.CreateSession(ctx, ev.session()); err != nil {
			return Result{}, err
		}
		return Result{IDField: "session_id", ID: ev.SessionID}, nil

	case KindSessionCompleted:
		var ev SessionCompleted
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		sess, err := s.store.CompleteSession(ctx, ev.completion(s.now()))
		if err != nil {
			return Result{}, err
		}
		if s.notifier != nil {
			s.notifier.SessionCompleted(sess)
		}
		return Result{IDField: "session_id", ID: ev.SessionID}, nil

	case KindStepStarted:
		var ev StepStarted
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		if err := s.store.CreateStep(ctx, ev.step(s.now())); err != nil {
			return Result{}, err
		}
		return Result{IDField: "step_id", ID: ev.StepID}, nil

	case KindStepCompleted:
		var ev StepCompleted
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		if _, err := s.store.CompleteStep(ctx, ev.completion(s.now())); err != nil {
			return Result{}, err
		}
		return Result{IDField: "step_id", ID: ev.StepID}, nil

	case KindLlmCall:
		var ev LlmCall
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		row := ev.row()
		if err := s.store.CreateLlmCall(ctx, row); err != nil {
			return Result{}, err
		}
		return Result{IDField: "id", ID: row.ID}, nil

	case KindToolCall:
		var ev ToolCall
		if err := DecodeJSON(raw, &ev); err != nil {
			return Result{}, err
		}
		row := ev.row()
		if err := s.store.CreateToolCall(ctx, row); err != nil {
			return Result{}, err
		}
		return Result{IDField: "id", ID: row.ID}, nil
	}

	return Result{}, fmt.Errorf("ingest: unknown event kind %q", kind)
}

// logFailure records a failed write that is not a client error.
func logFailure(kind string, err error) {
	log.Error().Err(err).Str("event", kind).Msg("ingest write failed")
}
