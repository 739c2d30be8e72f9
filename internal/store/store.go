// Package store defines how tables are persisted and paged, and provides the
// in-memory implementation used by tests and single-node deployments.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/table"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Tables is the repository of tables. Update is an optimistic write: it fails
// with CONCURRENT_MODIFICATION when the stored version differs from the
// table's, and with NOT_FOUND when the table is absent.
type Tables interface {
	FindByID(ctx context.Context, id uuid.UUID) (*table.Table, error)
	Add(ctx context.Context, t *table.Table) error
	Update(ctx context.Context, t *table.Table) error

	// FindActive returns the NEW and STARTED tables the account is seated at.
	FindActive(ctx context.Context, account uuid.UUID) ([]*table.Table, error)
	FindByAccount(ctx context.Context, account uuid.UUID, q Query) (Page, error)
	// FindByGame lists the tables of a game, optionally restricted to status.
	FindByGame(ctx context.Context, gameID string, status table.Status, q Query) (Page, error)

	FindLogEntries(ctx context.Context, tableID uuid.UUID, since, before time.Time, limit int) ([]*table.LogEntry, error)
}

// Query selects a page of tables created in [From, To), newest first.
type Query struct {
	From   time.Time
	To     time.Time
	Limit  int
	Cursor string
}

// Page is one page of tables. Next is empty on the last page.
type Page struct {
	Tables []*table.Table
	Next   string
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultPageSize
	case q.Limit > MaxPageSize:
		return MaxPageSize
	}
	return q.Limit
}

func (q Query) inWindow(created time.Time) bool {
	if !q.From.IsZero() && created.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !created.Before(q.To) {
		return false
	}
	return true
}

// seated reports whether account holds a seat it has not given up.
func seated(rec table.Record, account uuid.UUID) bool {
	for _, p := range rec.Players {
		if p.Computer || p.AccountID != account {
			continue
		}
		return p.Status != table.PlayerLeft && p.Status != table.PlayerRejected
	}
	return false
}

func sortNewestFirst(recs []table.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return Position{Created: recs[i].Created, ID: recs[i].ID}.before(
			Position{Created: recs[j].Created, ID: recs[j].ID})
	})
}
