package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/sentinel/internal/threat/domain"
)

var _ domain.SessionStore = (*Postgres)(nil)

// Postgres implements the session store on pgx.
type Postgres struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

const sessionColumns = `id, actor_id, token_hash, ip, user_agent, created_at, last_activity_at, terminated_at`

func (p *Postgres) StartSession(ctx context.Context, s domain.Session) error {
	// Refresh the live session for this token if one exists; a terminated
	// session keeps its history and a fresh row is written instead.
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET ip = $3, user_agent = $4, last_activity_at = $5
		 WHERE actor_id = $1 AND token_hash = $2 AND terminated_at IS NULL`,
		s.ActorID, s.TokenHash, s.IP, s.UserAgent, s.LastActivityAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`,
		s.ID, s.ActorID, s.TokenHash, s.IP, s.UserAgent, s.CreatedAt, s.LastActivityAt,
	)
	return err
}

func (p *Postgres) TouchSession(ctx context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET last_activity_at = $3
		 WHERE actor_id = $1 AND token_hash = $2 AND terminated_at IS NULL`,
		actorID, tokenHash, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (p *Postgres) TerminateSession(ctx context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET terminated_at = $3
		 WHERE actor_id = $1 AND token_hash = $2 AND terminated_at IS NULL`,
		actorID, tokenHash, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (p *Postgres) TerminateAllSessions(ctx context.Context, actorID uuid.UUID, at time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET terminated_at = $2 WHERE actor_id = $1 AND terminated_at IS NULL`,
		actorID, at,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) ListSessions(ctx context.Context, actorID uuid.UUID) ([]domain.Session, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE actor_id = $1 ORDER BY created_at DESC`,
		actorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.ActorID, &s.TokenHash, &s.IP, &s.UserAgent, &s.CreatedAt, &s.LastActivityAt, &s.TerminatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (p *Postgres) RecentIPs(ctx context.Context, actorID uuid.UUID, since time.Time) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ip FROM sessions WHERE actor_id = $1 AND created_at >= $2 AND ip <> ''`,
		actorID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ips []string
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		ips = append(ips, ip)
	}
	return ips, rows.Err()
}

func (p *Postgres) RecentLogins(ctx context.Context, actorID uuid.UUID, since time.Time) ([]time.Time, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT created_at FROM sessions WHERE actor_id = $1 AND created_at >= $2 ORDER BY created_at ASC`,
		actorID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logins []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		logins = append(logins, t)
	}
	return logins, rows.Err()
}
