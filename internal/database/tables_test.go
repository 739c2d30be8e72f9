package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tabletop/internal/config"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to the database named by the PG_* variables, or skips.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	cfg, err := config.ParseEnv()
	require.NoError(t, err)
	if cfg.Postgres.User == "" {
		t.Skip("POSTGRES_USER not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := Connect(ctx, cfg.Postgres, logrus.New())
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func newRepository(t *testing.T) *TableRepository {
	t.Helper()
	reg, err := game.NewRegistry(race.New())
	require.NoError(t, err)
	return NewTableRepository(testPool(t), reg)
}

func TestTableRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	owner, b := uuid.New(), uuid.New()

	tbl, err := table.Create(race.New(), owner, table.Settings{}, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.Invite(owner, b))
	require.NoError(t, tbl.Accept(b))
	require.NoError(t, tbl.Start(owner))
	require.NoError(t, repo.Add(ctx, tbl))
	assert.Equal(t, 1, tbl.Version())

	loaded, err := repo.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.Perform(owner, game.Action{Kind: race.KindRoll}))
	require.NoError(t, loaded.Skip(owner))
	require.NoError(t, repo.Update(ctx, loaded))

	stale, err := repo.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	fresh, err := repo.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	require.NoError(t, fresh.Undo(b))
	require.NoError(t, repo.Update(ctx, fresh))

	require.NoError(t, stale.ProposeToLeave(b))
	err = repo.Update(ctx, stale)
	assert.Equal(t, apperrors.CodeConcurrentModification, apperrors.CodeOf(err))

	entries, err := repo.FindLogEntries(ctx, tbl.ID(), time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, table.LogCreate, entries[len(entries)-1].Type)
	assert.Contains(t, func() []table.LogType {
		var out []table.LogType
		for _, e := range entries {
			out = append(out, e.Type)
		}
		return out
	}(), table.LogUndo)

	active, err := repo.FindActive(ctx, b)
	require.NoError(t, err)
	require.NotEmpty(t, active)
	assert.Equal(t, tbl.ID(), active[0].ID())

	page, err := repo.FindByAccount(ctx, owner, store.Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Tables, 1)
	assert.Empty(t, page.Next)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}
