// Package service runs table operations against a store: load, mutate, save
// with optimistic retry, then dispatch the domain events the table produced.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/automa"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/game"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/rating"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
)

// Options tune a TableService.
type Options struct {
	// Retries bounds the attempts of one operation that keeps losing
	// concurrent updates.
	Retries         int
	MaxActiveTables int
	AutomaDelay     time.Duration
	// Ratings, when set, is adjusted whenever a table ends.
	Ratings rating.Store
}

// TableService is the entry point for every table operation.
type TableService struct {
	tables    store.Tables
	games     *game.Registry
	scheduler automa.Scheduler
	publisher events.Publisher
	logger    *logrus.Logger
	opts      Options
}

func NewTableService(
	tables store.Tables,
	games *game.Registry,
	scheduler automa.Scheduler,
	publisher events.Publisher,
	logger *logrus.Logger,
	opts Options,
) *TableService {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	return &TableService{
		tables:    tables,
		games:     games,
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

var _ automa.Dispatcher = (*TableService)(nil)

// Create opens a table for owner, who may hold at most MaxActiveTables.
func (s *TableService) Create(ctx context.Context, owner uuid.UUID, gameID string, settings table.Settings) (*table.Table, error) {
	g, ok := s.games.Get(gameID)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeGameNotFound, "unknown game",
			map[string]string{"game": gameID})
	}
	if err := s.checkActiveLimit(ctx, owner); err != nil {
		return nil, err
	}

	t, err := table.Create(g, owner, settings, nil)
	if err != nil {
		return nil, err
	}
	if err := s.tables.Add(ctx, t); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"table": t.ID(),
		"game":  gameID,
		"owner": owner,
	}).Info("table created")
	s.Dispatch(ctx, t.Events())
	return t, nil
}

func (s *TableService) checkActiveLimit(ctx context.Context, account uuid.UUID) error {
	if s.opts.MaxActiveTables <= 0 {
		return nil
	}
	active, err := s.tables.FindActive(ctx, account)
	if err != nil {
		return err
	}
	if len(active) >= s.opts.MaxActiveTables {
		return apperrors.WithMetadata(apperrors.CodeExceedsMaxActiveTables, "too many active tables",
			map[string]string{"max": fmt.Sprint(s.opts.MaxActiveTables)})
	}
	return nil
}

func (s *TableService) Get(ctx context.Context, id uuid.UUID) (*table.Table, error) {
	return s.tables.FindByID(ctx, id)
}

// Log returns log entries strictly between since and before, newest first.
func (s *TableService) Log(ctx context.Context, id uuid.UUID, since, before time.Time, limit int) ([]*table.LogEntry, error) {
	t, err := s.tables.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Log().Range(since, before, limit)
}

func (s *TableService) ListByAccount(ctx context.Context, account uuid.UUID, q store.Query) (store.Page, error) {
	return s.tables.FindByAccount(ctx, account, q)
}

func (s *TableService) ListByGame(ctx context.Context, gameID string, status table.Status, q store.Query) (store.Page, error) {
	if _, ok := s.games.Get(gameID); !ok {
		return store.Page{}, apperrors.WithMetadata(apperrors.CodeGameNotFound, "unknown game",
			map[string]string{"game": gameID})
	}
	return s.tables.FindByGame(ctx, gameID, status, q)
}

// mutate applies op to a freshly loaded table and saves it. A lost
// concurrent update reruns op on a new load.
func (s *TableService) mutate(ctx context.Context, id uuid.UUID, op string, fn func(*table.Table) error) (*table.Table, error) {
	log := s.logger.WithFields(logrus.Fields{"table": id, "op": op})
	for attempt := 1; ; attempt++ {
		t, err := s.tables.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(t); err != nil {
			log.WithError(err).Debug("table operation rejected")
			return nil, err
		}
		err = s.tables.Update(ctx, t)
		if apperrors.HasCode(err, apperrors.CodeConcurrentModification) && attempt < s.opts.Retries {
			log.WithField("attempt", attempt).Debug("concurrent update, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.Dispatch(ctx, t.Events())
		return t, nil
	}
}

// Dispatch publishes events and schedules a computer move for every computer
// turn that began.
func (s *TableService) Dispatch(ctx context.Context, evs []table.Event) {
	for _, ev := range evs {
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, ev); err != nil {
				s.logger.WithFields(logrus.Fields{
					"table": ev.TableID,
					"event": ev.Type,
				}).WithError(err).Warn("publish event")
			}
		}
		if ev.Type == table.EventEnded && s.opts.Ratings != nil {
			s.recordRatings(ctx, ev)
		}
		if ev.Type == table.EventTurnBegan && ev.Computer && s.scheduler != nil {
			job := automa.Job{TableID: ev.TableID, PlayerID: ev.PlayerID}
			if err := s.scheduler.Schedule(ctx, job, s.opts.AutomaDelay); err != nil {
				s.logger.WithFields(logrus.Fields{
					"table":  ev.TableID,
					"player": ev.PlayerID,
				}).WithError(err).Error("schedule automa")
			}
		}
	}
}

func (s *TableService) recordRatings(ctx context.Context, ev table.Event) {
	log := s.logger.WithFields(logrus.Fields{"table": ev.TableID, "game": ev.GameID})
	t, err := s.tables.FindByID(ctx, ev.TableID)
	if err != nil {
		log.WithError(err).Error("load ended table for rating")
		return
	}
	var results []rating.Result
	for _, p := range t.Players() {
		if p.Computer || p.Score == nil {
			continue
		}
		results = append(results, rating.Result{AccountID: p.AccountID, Score: *p.Score})
	}
	adjusted, err := rating.Record(ctx, s.opts.Ratings, ev.GameID, ev.TableID, t.Ended(), results)
	if err != nil {
		log.WithError(err).Error("record ratings")
		return
	}
	log.WithField("accounts", len(adjusted)).Debug("ratings adjusted")
}

// Rating returns an account's rating in a game.
func (s *TableService) Rating(ctx context.Context, account uuid.UUID, gameID string) (rating.Rating, error) {
	if _, ok := s.games.Get(gameID); !ok {
		return rating.Rating{}, apperrors.WithMetadata(apperrors.CodeGameNotFound, "unknown game",
			map[string]string{"game": gameID})
	}
	if s.opts.Ratings == nil {
		return rating.Initial(account, gameID), nil
	}
	return rating.Get(ctx, s.opts.Ratings, account, gameID)
}
