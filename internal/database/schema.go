package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The table record is stored as a
// document; the columns next to it exist for filtering and paging.
const schema = `
CREATE TABLE IF NOT EXISTS tables (
	id      UUID PRIMARY KEY,
	game    TEXT NOT NULL,
	status  TEXT NOT NULL,
	created TIMESTAMPTZ NOT NULL,
	expires TIMESTAMPTZ,
	version INT NOT NULL,
	record  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS tables_game_status_created ON tables (game, status, created DESC, id DESC);

CREATE TABLE IF NOT EXISTS table_players (
	table_id   UUID NOT NULL REFERENCES tables (id),
	account_id UUID NOT NULL,
	status     TEXT NOT NULL,
	PRIMARY KEY (table_id, account_id)
);
CREATE INDEX IF NOT EXISTS table_players_account ON table_players (account_id);

CREATE TABLE IF NOT EXISTS table_log (
	table_id   UUID NOT NULL REFERENCES tables (id),
	ts         TIMESTAMPTZ NOT NULL,
	player_id  UUID NOT NULL,
	account_id UUID,
	type       TEXT NOT NULL,
	parameters TEXT[] NOT NULL DEFAULT '{}',
	expires    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (table_id, ts)
);

CREATE TABLE IF NOT EXISTS table_history (
	table_id UUID NOT NULL REFERENCES tables (id),
	ts       TIMESTAMPTZ NOT NULL,
	previous TIMESTAMPTZ,
	state    JSONB NOT NULL,
	expires  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (table_id, ts)
);

CREATE TABLE IF NOT EXISTS ratings (
	account_id UUID NOT NULL,
	game       TEXT NOT NULL,
	table_id   UUID,
	rating     INT NOT NULL,
	deviation  DOUBLE PRECISION NOT NULL,
	volatility DOUBLE PRECISION NOT NULL,
	updated    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, game)
);

CREATE TABLE IF NOT EXISTS rating_changes (
	account_id UUID NOT NULL,
	game       TEXT NOT NULL,
	table_id   UUID,
	old_rating INT NOT NULL,
	new_rating INT NOT NULL,
	updated    TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables the repository needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
