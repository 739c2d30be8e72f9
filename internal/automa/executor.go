package automa

import (
	"context"

	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
)

// Dispatcher receives the domain events of a saved table.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []table.Event)
}

// Executor plays a computer turn for a job.
type Executor struct {
	tables     store.Tables
	dispatcher Dispatcher
	logger     *logrus.Logger
	retries    int
}

func NewExecutor(tables store.Tables, dispatcher Dispatcher, logger *logrus.Logger, retries int) *Executor {
	if retries < 1 {
		retries = 1
	}
	return &Executor{tables: tables, dispatcher: dispatcher, logger: logger, retries: retries}
}

// Execute loads the table and lets the engine play the job's player. It does
// nothing when the table is gone or no longer waiting on that player, and
// starts over from a fresh load when another writer got there first.
func (e *Executor) Execute(ctx context.Context, job Job) error {
	log := e.logger.WithFields(logrus.Fields{
		"table":  job.TableID,
		"player": job.PlayerID,
	})

	for attempt := 1; ; attempt++ {
		t, err := e.tables.FindByID(ctx, job.TableID)
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			log.Debug("automa job for missing table")
			return nil
		}
		if err != nil {
			log.WithError(err).Error("load table for automa")
			return err
		}

		p, ok := t.Player(job.PlayerID)
		if t.Status() != table.StatusStarted || !ok || !p.Computer || !p.Turn {
			log.WithField("status", t.Status()).Debug("automa job no longer applies")
			return nil
		}

		if err := t.ExecuteAutoma(job.PlayerID); err != nil {
			log.WithError(err).Error("execute automa")
			return err
		}

		err = e.tables.Update(ctx, t)
		if apperrors.HasCode(err, apperrors.CodeConcurrentModification) && attempt < e.retries {
			log.WithField("attempt", attempt).Debug("automa lost a concurrent update, retrying")
			continue
		}
		if err != nil {
			log.WithError(err).Error("save table after automa")
			return err
		}

		e.dispatcher.Dispatch(ctx, t.Events())
		return nil
	}
}
