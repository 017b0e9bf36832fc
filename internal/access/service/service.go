package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/caremesh/sentinel/internal/access/domain"
	adomain "github.com/caremesh/sentinel/internal/audit/domain"
	"github.com/caremesh/sentinel/internal/metrics"
)

// Service wraps the pure capability evaluator with observability and the
// sensitive-denial audit obligation. The decision itself stays referentially
// transparent: identical inputs always produce identical decisions.
type Service struct {
	audit adomain.Recorder
	log   zerolog.Logger
}

func New(audit adomain.Recorder) *Service {
	return &Service{audit: audit, log: zerolog.Nop()}
}

// SetLogger allows injection of a structured logger for debug tracing.
func (s *Service) SetLogger(l zerolog.Logger) { s.log = l }

// Authorize resolves one capability check. Unknown capability names are a
// configuration error; every other outcome is an ordinary Decision.
func (s *Service) Authorize(ctx context.Context, in domain.Input) (domain.Decision, error) {
	dec, err := domain.Evaluate(in)
	if err != nil {
		metrics.IncAuthzDecision(in.Capability, "error")
		s.log.Error().Err(err).
			Str("actor_id", in.ActorID.String()).
			Str("role", in.Role.String()).
			Msg("authorize: unknown capability")
		return domain.Decision{}, err
	}

	if dec.Allowed {
		metrics.IncAuthzDecision(in.Capability, "granted")
		s.log.Debug().
			Str("actor_id", in.ActorID.String()).
			Str("role", in.Role.String()).
			Str("capability", in.Capability).
			Str("reason", dec.Reason).
			Msg("authorize: granted")
		return dec, nil
	}

	metrics.IncAuthzDecision(in.Capability, "denied")
	s.log.Debug().
		Str("actor_id", in.ActorID.String()).
		Str("role", in.Role.String()).
		Str("capability", in.Capability).
		Str("reason", dec.Reason).
		Msg("authorize: denied")

	// Denials are a normal outcome, not errors; only sensitive capabilities
	// leave an audit trail.
	if domain.IsSensitive(in.Capability) {
		actorID := in.ActorID
		tags := []string{adomain.TagSecurity, in.Capability}
		if in.Capability == domain.CapChangeUserRole {
			tags = append(tags, adomain.TagRoleChange)
		}
		s.audit.Record(ctx, adomain.Entry{
			ActorID:     &actorID,
			Action:      in.Capability,
			Severity:    adomain.SeverityWarning,
			Description: "capability denied: " + dec.Reason,
			Tags:        tags,
			At:          time.Now().UTC(),
		})
	}
	return dec, nil
}

// Capabilities lists the static table's capability names.
func (s *Service) Capabilities(context.Context) []string {
	return domain.Capabilities()
}
