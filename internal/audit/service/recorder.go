package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caremesh/sentinel/internal/audit/domain"
	"github.com/caremesh/sentinel/internal/metrics"
)

// Recorder appends audit entries best-effort. Writes run detached from the
// caller with their own timeout; a failed write is logged and counted, never
// surfaced. Audit is not transactional with the primary action.
type Recorder struct {
	store   domain.Store
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func New(store domain.Store, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Recorder{store: store, timeout: timeout, log: zerolog.Nop()}
}

// SetLogger allows injection of a structured logger.
func (r *Recorder) SetLogger(l zerolog.Logger) { r.log = l }

// Record appends the entry asynchronously. The caller's context is not used
// for the write so cancellation of the primary request cannot drop the record.
func (r *Recorder) Record(_ context.Context, e domain.Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.Append(ctx, e); err != nil {
			metrics.IncAuditWrite("error")
			r.log.Error().Err(err).
				Str("action", e.Action).
				Str("severity", string(e.Severity)).
				Msg("audit append failed")
			return
		}
		metrics.IncAuditWrite("ok")
	}()
}

// Wait blocks until all in-flight writes have finished. Test support.
func (r *Recorder) Wait() { r.wg.Wait() }
