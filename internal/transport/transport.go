package transport

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/caremesh/sentinel/internal/broadcast/domain"
)

// Transport fans a resolved payload out to a set of channel targets. The
// core knows nothing about how bytes reach a socket; implementations bind
// target kinds to real delivery mechanisms.
type Transport interface {
	Deliver(ctx context.Context, targets []domain.Target, p domain.Payload) error
}

// Logger is a Transport that logs deliveries. Useful as a tap in
// development, or as the sole transport in tests.
type Logger struct{ log zerolog.Logger }

func NewLogger(log zerolog.Logger) *Logger { return &Logger{log: log} }

func (l *Logger) Deliver(_ context.Context, targets []domain.Target, p domain.Payload) error {
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		keys = append(keys, t.String())
	}
	l.log.Info().
		Str("event", p.Event).
		Strs("targets", keys).
		Time("ts", p.At).
		Msg("deliver")
	return nil
}

// Multi composes transports; every delivery goes to each in order. The
// first error is returned after all transports have been attempted.
func Multi(ts ...Transport) Transport { return multi(ts) }

type multi []Transport

func (m multi) Deliver(ctx context.Context, targets []domain.Target, p domain.Payload) error {
	var first error
	for _, t := range m {
		if err := t.Deliver(ctx, targets, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
