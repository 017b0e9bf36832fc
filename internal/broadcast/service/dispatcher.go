package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	adomain "github.com/caremesh/sentinel/internal/audit/domain"
	"github.com/caremesh/sentinel/internal/broadcast/domain"
	"github.com/caremesh/sentinel/internal/metrics"
	"github.com/caremesh/sentinel/internal/transport"
)

// Dispatcher resolves events and hands the result to the transport layer.
// It implements domain.Publisher for the threat monitor and any embedding
// caller that emits domain events.
type Dispatcher struct {
	res       *Resolver
	transport transport.Transport
	audit     adomain.Recorder
	log       zerolog.Logger
}

func NewDispatcher(res *Resolver, t transport.Transport, audit adomain.Recorder) *Dispatcher {
	return &Dispatcher{res: res, transport: t, audit: audit, log: zerolog.Nop()}
}

// SetLogger allows injection of a structured logger.
func (d *Dispatcher) SetLogger(l zerolog.Logger) { d.log = l }

var _ domain.Publisher = (*Dispatcher)(nil)

// Publish resolves the event and delivers to all computed targets. Delivery
// faults are logged, not returned: the emitting flow has already committed.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.Event) error {
	targets, payload := d.Dispatch(ctx, ev)
	d.log.Debug().
		Str("event", payload.Event).
		Int("targets", len(targets)).
		Msg("publish")
	return nil
}

// Dispatch is Publish with the resolution result exposed, for HTTP callers
// that want the computed targets echoed back.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) ([]domain.Target, domain.Payload) {
	targets, payload, known := d.res.Resolve(ev)
	if !known {
		metrics.IncEventResolved(string(ev.Kind), "unknown_kind", 0)
		return targets, payload
	}
	metrics.IncEventResolved(string(ev.Kind), "resolved", len(targets))
	if len(targets) == 0 {
		return targets, payload
	}

	if err := d.transport.Deliver(ctx, targets, payload); err != nil {
		d.log.Error().Err(err).Str("event", payload.Event).Msg("transport delivery failed")
	}

	// Security-relevant events leave an audit trail; routine telemetry
	// (locations, chat) is audited by its own business flow, not here.
	switch ev.Kind {
	case domain.KindEmergencyBroadcast:
		d.audit.Record(ctx, adomain.Entry{
			ActorID:     ev.ActorID,
			Action:      string(ev.Kind),
			Severity:    adomain.SeverityHigh,
			Description: "emergency broadcast dispatched",
			After:       payload.Data,
			Tags:        []string{adomain.TagBroadcast, string(ev.Kind)},
			At:          time.Now().UTC(),
		})
	case domain.KindAccountLocked, domain.KindBruteForceDetected:
		d.audit.Record(ctx, adomain.Entry{
			ActorID:     ev.ActorID,
			Action:      string(ev.Kind),
			Severity:    adomain.SeverityHigh,
			Description: "security event dispatched",
			After:       payload.Data,
			Tags:        []string{adomain.TagSecurity, string(ev.Kind)},
			At:          time.Now().UTC(),
		})
	}
	return targets, payload
}
