package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/automa"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/rating"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []automa.Job
}

func (s *recordingScheduler) Schedule(_ context.Context, job automa.Job, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingScheduler) Run(ctx context.Context, _ automa.Handler) { <-ctx.Done() }

// flakyStore loses the first n updates to a concurrent writer.
type flakyStore struct {
	store.Tables
	n       int
	updates int
}

func (s *flakyStore) Update(ctx context.Context, t *table.Table) error {
	s.updates++
	if s.n > 0 {
		s.n--
		return apperrors.New(apperrors.CodeConcurrentModification, "conflict")
	}
	return s.Tables.Update(ctx, t)
}

type fixture struct {
	svc       *TableService
	mem       *store.Memory
	hub       *events.Hub
	scheduler *recordingScheduler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	reg, err := game.NewRegistry(race.New())
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		mem:       store.NewMemory(reg),
		hub:       events.NewHub(logger),
		scheduler: &recordingScheduler{},
	}
	f.svc = NewTableService(f.mem, reg, f.scheduler, f.hub, logger, opts)
	return f
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), err.Error())
}

func drain(sub *events.Subscription) []table.EventType {
	var out []table.EventType
	for {
		select {
		case ev := <-sub.C:
			out = append(out, ev.Type)
		default:
			return out
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3})
	owner := uuid.New()

	tbl, err := f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Version())

	got, err := f.svc.Get(ctx, tbl.ID())
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerID())
	assert.Equal(t, table.StatusNew, got.Status())

	_, err = f.svc.Create(ctx, owner, "chess", table.Settings{})
	assertCode(t, err, apperrors.CodeGameNotFound)
}

func TestCreateRespectsActiveLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3, MaxActiveTables: 2})
	owner, guest := uuid.New(), uuid.New()

	first, err := f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, "race", table.Settings{})
	assertCode(t, err, apperrors.CodeExceedsMaxActiveTables)

	// a table the owner abandoned no longer counts
	_, err = f.svc.Abandon(ctx, first.ID(), owner)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)

	// joining counts against the joiner's limit too
	for i := 0; i < 2; i++ {
		_, err = f.svc.Create(ctx, guest, "race", table.Settings{})
		require.NoError(t, err)
	}
	public, err := f.svc.Create(ctx, uuid.New(), "race", table.Settings{})
	require.NoError(t, err)
	_, err = f.svc.MakePublic(ctx, public.ID(), public.OwnerID())
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, public.ID(), guest)
	assertCode(t, err, apperrors.CodeExceedsMaxActiveTables)
}

func TestOperationsPublishEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3})
	owner, guest := uuid.New(), uuid.New()

	tbl, err := f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)
	sub := f.hub.Subscribe(tbl.ID())
	defer f.hub.Unsubscribe(sub)

	_, err = f.svc.Invite(ctx, tbl.ID(), owner, guest)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, tbl.ID(), guest)
	require.NoError(t, err)
	started, err := f.svc.Start(ctx, tbl.ID(), owner)
	require.NoError(t, err)
	assert.Equal(t, table.StatusStarted, started.Status())

	got := drain(sub)
	assert.Equal(t, table.EventInvited, got[0])
	assert.Equal(t, table.EventAccepted, got[1])
	assert.Contains(t, got, table.EventStarted)
	assert.Contains(t, got, table.EventTurnBegan)
	assert.Empty(t, f.scheduler.jobs, "no computer seated")

	_, err = f.svc.Perform(ctx, tbl.ID(), guest, game.Action{Kind: race.KindRoll})
	assertCode(t, err, apperrors.CodeNotYourTurn)
	assert.Empty(t, drain(sub), "rejected operations publish nothing")

	_, err = f.svc.Perform(ctx, tbl.ID(), owner, game.Action{Kind: race.KindRoll})
	require.NoError(t, err)
	assert.Contains(t, drain(sub), table.EventStateChanged)

	entries, err := f.svc.Log(ctx, tbl.ID(), time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, table.LogCreate, entries[len(entries)-1].Type)
}

func TestComputerTurnIsScheduled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3, AutomaDelay: time.Second})
	owner := uuid.New()

	tbl, err := f.svc.Create(ctx, owner, "race", table.Settings{Options: game.Options{"target": "1000"}})
	require.NoError(t, err)
	_, comp, err := f.svc.AddComputer(ctx, tbl.ID(), owner)
	require.NoError(t, err)
	assert.True(t, comp.Computer)

	_, err = f.svc.Start(ctx, tbl.ID(), owner)
	require.NoError(t, err)
	_, err = f.svc.EndTurn(ctx, tbl.ID(), owner)
	require.NoError(t, err)

	require.Len(t, f.scheduler.jobs, 1)
	assert.Equal(t, automa.Job{TableID: tbl.ID(), PlayerID: comp.ID}, f.scheduler.jobs[0])

	// the executor plays the job through the same dispatcher
	exec := automa.NewExecutor(f.mem, f.svc, f.svc.logger, 3)
	require.NoError(t, exec.Execute(ctx, f.scheduler.jobs[0]))
	after, err := f.svc.Get(ctx, tbl.ID())
	require.NoError(t, err)
	current := after.CurrentPlayers()
	require.Len(t, current, 1)
	assert.Equal(t, owner, current[0].AccountID)
}

func TestMutateRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3})
	owner := uuid.New()
	tbl, err := f.svc.Create(ctx, owner, "race", table.Settings{})
	require.NoError(t, err)

	flaky := &flakyStore{Tables: f.mem, n: 2}
	f.svc.tables = flaky
	got, err := f.svc.MakePublic(ctx, tbl.ID(), owner)
	require.NoError(t, err)
	assert.Equal(t, table.VisibilityPublic, got.Visibility())
	assert.Equal(t, 3, flaky.updates)

	flaky.n, flaky.updates = 5, 0
	_, err = f.svc.MakePrivate(ctx, tbl.ID(), owner)
	assertCode(t, err, apperrors.CodeConcurrentModification)
	assert.Equal(t, 3, flaky.updates)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Retries: 3})
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, owner, "race", table.Settings{})
		require.NoError(t, err)
	}

	page, err := f.svc.ListByAccount(ctx, owner, store.Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Tables, 2)
	assert.NotEmpty(t, page.Next)

	byGame, err := f.svc.ListByGame(ctx, "race", table.StatusNew, store.Query{})
	require.NoError(t, err)
	assert.Len(t, byGame.Tables, 3)

	_, err = f.svc.ListByGame(ctx, "chess", "", store.Query{})
	assertCode(t, err, apperrors.CodeGameNotFound)
}

func TestEndedTableAdjustsRatings(t *testing.T) {
	ctx := context.Background()
	ratings := rating.NewMemory()
	f := newFixture(t, Options{Retries: 3, Ratings: ratings})
	owner, guest := uuid.New(), uuid.New()

	tbl, err := f.svc.Create(ctx, owner, "race", table.Settings{Options: game.Options{"target": "1"}})
	require.NoError(t, err)
	_, err = f.svc.Invite(ctx, tbl.ID(), owner, guest)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, tbl.ID(), guest)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, tbl.ID(), owner)
	require.NoError(t, err)

	before, err := f.svc.Rating(ctx, owner, "race")
	require.NoError(t, err)
	assert.Equal(t, 1500, before.Rating)

	_, err = f.svc.Perform(ctx, tbl.ID(), owner, game.Action{Kind: race.KindRoll})
	require.NoError(t, err)
	ended, err := f.svc.Perform(ctx, tbl.ID(), owner, game.Action{Kind: race.KindAdvance})
	require.NoError(t, err)
	require.Equal(t, table.StatusEnded, ended.Status())

	winner, err := f.svc.Rating(ctx, owner, "race")
	require.NoError(t, err)
	loser, err := f.svc.Rating(ctx, guest, "race")
	require.NoError(t, err)
	assert.Greater(t, winner.Rating, 1500)
	assert.Less(t, loser.Rating, 1500)
	require.NotNil(t, winner.TableID)
	assert.Equal(t, tbl.ID(), *winner.TableID)

	_, err = f.svc.Rating(ctx, owner, "chess")
	assertCode(t, err, apperrors.CodeGameNotFound)
}
