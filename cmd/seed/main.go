// Command seed provisions a development directory: one active actor per
// role, plus the schema the repositories expect.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/caremesh/sentinel/internal/config"
	"github.com/caremesh/sentinel/internal/directory/domain"
	"github.com/caremesh/sentinel/internal/directory/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS actors (
	id               UUID PRIMARY KEY,
	role             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'active',
	failed_attempts  INT NOT NULL DEFAULT 0,
	locked_until     TIMESTAMPTZ,
	last_login_at    TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	id               UUID PRIMARY KEY,
	actor_id         UUID NOT NULL,
	token_hash       TEXT NOT NULL,
	ip               TEXT NOT NULL DEFAULT '',
	user_agent       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	last_activity_at TIMESTAMPTZ NOT NULL,
	terminated_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sessions_actor_created_idx ON sessions (actor_id, created_at);

CREATE TABLE IF NOT EXISTS audit_records (
	id          UUID PRIMARY KEY,
	actor_id    UUID,
	action      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	before      JSONB,
	after       JSONB,
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT[] NOT NULL DEFAULT '{}',
	at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_at_idx ON audit_records (at);
`

func main() {
	_ = godotenv.Load()

	schemaOnly := flag.Bool("schema-only", false, "create tables and exit without inserting actors")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	ctx := context.Background()
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		fatalf("invalid DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		fatalf("pg pool: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		fatalf("apply schema: %v", err)
	}
	fmt.Println("schema ready")
	if *schemaOnly {
		return
	}

	for _, role := range domain.AllRoles {
		id := uuid.New()
		_, err := pool.Exec(ctx,
			`INSERT INTO actors (id, role, status) VALUES ($1, $2, $3)`,
			id, string(role), string(domain.StatusActive),
		)
		if err != nil {
			fatalf("insert %s: %v", role, err)
		}
	}

	repo := repository.New(pool)
	actors, err := repo.ListActors(ctx)
	if err != nil {
		fatalf("list actors: %v", err)
	}
	for _, a := range actors {
		fmt.Printf("%s  %s\n", a.ID, a.Role)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
