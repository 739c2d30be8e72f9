package automa

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []table.Event
	calls  int
}

func (d *recordingDispatcher) Dispatch(_ context.Context, events []table.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.events = append(d.events, events...)
}

// conflictingStore fails the first n updates as if another writer won.
type conflictingStore struct {
	store.Tables
	n int
}

func (s *conflictingStore) Update(ctx context.Context, t *table.Table) error {
	if s.n > 0 {
		s.n--
		return apperrors.New(apperrors.CodeConcurrentModification, "conflict")
	}
	return s.Tables.Update(ctx, t)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// computerTurn saves a started table where the computer player holds the turn.
func computerTurn(t *testing.T, tables store.Tables) (*table.Table, uuid.UUID, Job) {
	t.Helper()
	ctx := context.Background()
	owner := uuid.New()
	tbl, err := table.Create(race.New(), owner, table.Settings{Options: game.Options{"target": "1000"}}, nil)
	require.NoError(t, err)
	comp, err := tbl.AddComputer(owner)
	require.NoError(t, err)
	require.NoError(t, tbl.Start(owner))
	require.NoError(t, tbl.EndTurn(owner))
	require.NoError(t, tables.Add(ctx, tbl))
	return tbl, owner, Job{TableID: tbl.ID(), PlayerID: comp.ID}
}

func newStore(t *testing.T) *store.Memory {
	t.Helper()
	reg, err := game.NewRegistry(race.New())
	require.NoError(t, err)
	return store.NewMemory(reg)
}

func TestExecutorPlaysComputerTurn(t *testing.T) {
	ctx := context.Background()
	mem := newStore(t)
	_, owner, job := computerTurn(t, mem)
	d := &recordingDispatcher{}

	require.NoError(t, NewExecutor(mem, d, quietLogger(), 3).Execute(ctx, job))

	tbl, err := mem.FindByID(ctx, job.TableID)
	require.NoError(t, err)
	p, _ := tbl.PlayerByAccount(owner)
	assert.True(t, p.Turn)
	assert.Equal(t, 1, d.calls)

	var began []table.Event
	for _, ev := range d.events {
		if ev.Type == table.EventTurnBegan {
			began = append(began, ev)
		}
	}
	require.Len(t, began, 1)
	assert.Equal(t, owner, began[0].AccountID)
}

func TestExecutorIgnoresStaleJobs(t *testing.T) {
	ctx := context.Background()
	mem := newStore(t)
	tbl, owner, job := computerTurn(t, mem)
	d := &recordingDispatcher{}
	ex := NewExecutor(mem, d, quietLogger(), 3)

	assert.NoError(t, ex.Execute(ctx, Job{TableID: uuid.New(), PlayerID: job.PlayerID}))

	// the owner's seat is not a computer
	ownerSeat, _ := tbl.PlayerByAccount(owner)
	assert.NoError(t, ex.Execute(ctx, Job{TableID: job.TableID, PlayerID: ownerSeat.ID}))

	// the same job delivered twice only plays once
	require.NoError(t, ex.Execute(ctx, job))
	require.NoError(t, ex.Execute(ctx, job))
	assert.Equal(t, 1, d.calls)

	loaded, err := mem.FindByID(ctx, job.TableID)
	require.NoError(t, err)
	require.NoError(t, loaded.Abandon(owner))
	require.NoError(t, mem.Update(ctx, loaded))
	assert.NoError(t, ex.Execute(ctx, job))
	assert.Equal(t, 1, d.calls)
}

func TestExecutorRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	mem := newStore(t)
	_, _, job := computerTurn(t, mem)
	d := &recordingDispatcher{}

	conflicts := &conflictingStore{Tables: mem, n: 2}
	require.NoError(t, NewExecutor(conflicts, d, quietLogger(), 3).Execute(ctx, job))
	assert.Equal(t, 1, d.calls)

	_, _, job = computerTurn(t, mem)
	conflicts = &conflictingStore{Tables: mem, n: 5}
	err := NewExecutor(conflicts, d, quietLogger(), 3).Execute(ctx, job)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
	assert.Equal(t, 1, d.calls)
}

func TestTimerSchedulerRunsDueJobs(t *testing.T) {
	s := NewTimerScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Job, 1)
	go s.Run(ctx, func(_ context.Context, job Job) error {
		got <- job
		return nil
	})

	job := Job{TableID: uuid.New(), PlayerID: uuid.New()}
	require.NoError(t, s.Schedule(ctx, job, 10*time.Millisecond))
	select {
	case j := <-got:
		assert.Equal(t, job, j)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestTimerSchedulerStops(t *testing.T) {
	s := NewTimerScheduler()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Schedule(ctx, Job{}, time.Hour))
	assert.Equal(t, 1, s.Pending())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context, Job) error { return nil })
		close(done)
	}()
	cancel()
	<-done

	assert.Equal(t, 0, s.Pending())
	assert.Error(t, s.Schedule(context.Background(), Job{}, time.Millisecond))
}
