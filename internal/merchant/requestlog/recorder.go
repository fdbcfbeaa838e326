// Package requestlog is the Merchant's Request-Log Recorder, §4.6: an
// async, fire-and-forget append of every inbound UCP/AP2 request so the
// demonstrator can be audited without slowing the request path.
package requestlog

import (
	"context"

	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Recorder records RequestLogEntry values off the request goroutine.
// If store is nil, entries are only logged, never persisted — matching
// the teacher's audit service's "logger first, storage optional" shape.
type Recorder struct {
	store ports.RequestLogStore
	log   zerolog.Logger
}

// New builds a Recorder.
func New(store ports.RequestLogStore, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Record appends entry asynchronously. The caller's context is not reused
// for the background append since it may already be canceled by the time
// the goroutine runs (the request has returned to the client).
func (r *Recorder) Record(entry *domain.RequestLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	go func() {
		r.log.Info().
			Str("kind", entry.Kind).
			Str("endpoint", entry.Endpoint).
			Str("method", entry.Method).
			Int("status", entry.Status).
			Str("mandate_id", entry.MandateID).
			Dur("duration", entry.Duration).
			Msg("request logged")

		if r.store == nil {
			return
		}
		if err := r.store.Append(context.Background(), entry); err != nil {
			r.log.Warn().Err(err).Str("endpoint", entry.Endpoint).Msg("failed to persist request log entry")
		}
	}()
}
