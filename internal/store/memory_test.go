package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *store.Memory {
	t.Helper()
	reg, err := game.NewRegistry(race.New())
	require.NoError(t, err)
	return store.NewMemory(reg)
}

func createAt(t *testing.T, owner uuid.UUID, at time.Time) *table.Table {
	t.Helper()
	tbl, err := table.Create(race.New(), owner, table.Settings{},
		table.NewClock(func() time.Time { return at }))
	require.NoError(t, err)
	return tbl
}

func TestMemoryAddFindUpdate(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	owner := uuid.New()
	tbl := createAt(t, owner, time.Now())

	require.NoError(t, m.Add(ctx, tbl))
	assert.Equal(t, 1, tbl.Version())
	assert.Empty(t, tbl.Log().Pending())
	assertCode(t, m.Add(ctx, tbl), apperrors.CodeInvalidArgument)

	loaded, err := m.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version())
	assert.Equal(t, owner, loaded.OwnerID())

	_, err = m.FindByID(ctx, uuid.New())
	assertCode(t, err, apperrors.CodeNotFound)

	// two writers load the same version; the second one loses
	other, err := m.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	_, err = loaded.AddComputer(owner)
	require.NoError(t, err)
	require.NoError(t, m.Update(ctx, loaded))
	assert.Equal(t, 2, loaded.Version())

	require.NoError(t, other.MakePublic(owner))
	assertCode(t, m.Update(ctx, other), apperrors.CodeConcurrentModification)

	missing := createAt(t, owner, time.Now())
	assertCode(t, m.Update(ctx, missing), apperrors.CodeNotFound)
}

func TestMemoryPersistsHistoryAndLog(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	owner, b := uuid.New(), uuid.New()
	tbl := createAt(t, owner, time.Now())
	require.NoError(t, tbl.Invite(owner, b))
	require.NoError(t, tbl.Accept(b))
	require.NoError(t, tbl.Start(owner))
	require.NoError(t, m.Add(ctx, tbl))

	tbl, err := m.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	require.NoError(t, tbl.Perform(owner, game.Action{Kind: race.KindRoll}))
	require.NoError(t, m.Update(ctx, tbl))

	tbl, err = m.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	require.NoError(t, tbl.Skip(owner))
	require.NoError(t, m.Update(ctx, tbl))

	tbl, err = m.FindByID(ctx, tbl.ID())
	require.NoError(t, err)
	require.True(t, tbl.CanUndo())
	require.NoError(t, tbl.Undo(b))
	require.NoError(t, m.Update(ctx, tbl))

	entries, err := m.FindLogEntries(ctx, tbl.ID(), time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, table.LogBeginTurn, entries[0].Type)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Timestamp.After(entries[i].Timestamp))
	}
	assert.Equal(t, table.LogCreate, entries[len(entries)-1].Type)

	limited, err := m.FindLogEntries(ctx, tbl.ID(), time.Time{}, time.Time{}, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	viaTable, err := tbl.Log().Range(time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, viaTable, len(entries))
}

func TestMemoryListings(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		tbl := createAt(t, alice, base.Add(time.Duration(i)*time.Hour))
		if i%2 == 0 {
			require.NoError(t, tbl.Invite(alice, bob))
		}
		require.NoError(t, m.Add(ctx, tbl))
		ids = append(ids, tbl.ID())
	}

	active, err := m.FindActive(ctx, bob)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, ids[4], active[0].ID())

	page, err := m.FindByAccount(ctx, alice, store.Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Tables, 2)
	assert.Equal(t, ids[4], page.Tables[0].ID())
	assert.Equal(t, ids[3], page.Tables[1].ID())
	require.NotEmpty(t, page.Next)

	page, err = m.FindByAccount(ctx, alice, store.Query{Limit: 2, Cursor: page.Next})
	require.NoError(t, err)
	require.Len(t, page.Tables, 2)
	assert.Equal(t, ids[2], page.Tables[0].ID())

	page, err = m.FindByAccount(ctx, alice, store.Query{Limit: 2, Cursor: page.Next})
	require.NoError(t, err)
	require.Len(t, page.Tables, 1)
	assert.Equal(t, ids[0], page.Tables[0].ID())
	assert.Empty(t, page.Next)

	window, err := m.FindByGame(ctx, "race", table.StatusNew, store.Query{
		From: base.Add(time.Hour),
		To:   base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window.Tables, 2)
	assert.Equal(t, ids[2], window.Tables[0].ID())

	none, err := m.FindByGame(ctx, "race", table.StatusStarted, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, none.Tables)

	first, err := m.FindByAccount(ctx, alice, store.Query{Limit: 1})
	require.NoError(t, err)
	_, err = m.FindByGame(ctx, "race", "", store.Query{Cursor: first.Next})
	assertCode(t, err, apperrors.CodeInvalidCursor)
	_, err = m.FindByGame(ctx, "race", "", store.Query{Cursor: "%%%"})
	assertCode(t, err, apperrors.CodeInvalidCursor)
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), err.Error())
}
