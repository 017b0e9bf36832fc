package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/sentinel/internal/audit/domain"
)

var _ domain.Store = (*Postgres)(nil)

// Postgres appends audit entries to an insert-only table.
type Postgres struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (p *Postgres) Append(ctx context.Context, e domain.Entry) error {
	before, err := json.Marshal(e.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(e.After)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO audit_records
		   (id, actor_id, action, severity, before, after, ip, user_agent, request_id, description, tags, at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.ID, e.ActorID, e.Action, string(e.Severity), before, after,
		e.IP, e.UserAgent, e.RequestID, e.Description, e.Tags, e.At,
	)
	return err
}
