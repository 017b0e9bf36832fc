package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caremesh/sentinel/internal/directory/domain"
)

var _ domain.Store = (*Postgres)(nil)

// Postgres implements the directory store on pgx.
type Postgres struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

const actorColumns = `id, role, status, failed_attempts, locked_until, last_login_at, created_at, updated_at`

func scanActor(row pgx.Row) (domain.Actor, error) {
	var a domain.Actor
	var role, status string
	if err := row.Scan(&a.ID, &role, &status, &a.FailedAttempts, &a.LockedUntil, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, err
	}
	a.Role = domain.Role(role)
	a.Status = domain.ActorStatus(status)
	return a, nil
}

func (p *Postgres) GetActor(ctx context.Context, id uuid.UUID) (domain.Actor, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id)
	return scanActor(row)
}

func (p *Postgres) ListActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (p *Postgres) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`UPDATE actors SET failed_attempts = failed_attempts + 1, updated_at = now() WHERE id = $1 RETURNING failed_attempts`,
		id,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return n, err
}

func (p *Postgres) ResetFailedAttempts(ctx context.Context, id uuid.UUID, loginAt time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE actors SET failed_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = now() WHERE id = $1`,
		id, loginAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE actors SET locked_until = $2, updated_at = now() WHERE id = $1`,
		id, until,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
