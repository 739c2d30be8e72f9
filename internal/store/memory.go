package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/table"
)

// Memory keeps tables in process memory.
type Memory struct {
	mu      sync.Mutex
	games   *game.Registry
	now     func() time.Time
	tables  map[uuid.UUID]table.Record
	history map[uuid.UUID]map[int64]table.HistoricRecord
	logs    map[uuid.UUID][]*table.LogEntry
}

var _ Tables = (*Memory)(nil)

// NewMemory returns an empty store resolving games through games.
func NewMemory(games *game.Registry) *Memory {
	return &Memory{
		games:   games,
		now:     time.Now,
		tables:  make(map[uuid.UUID]table.Record),
		history: make(map[uuid.UUID]map[int64]table.HistoricRecord),
		logs:    make(map[uuid.UUID][]*table.LogEntry),
	}
}

var errTableNotFound = apperrors.New(apperrors.CodeNotFound, "table not found")

func (m *Memory) restore(rec table.Record) (*table.Table, error) {
	g, ok := m.games.Get(rec.Game)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeGameNotFound, "game not registered",
			map[string]string{"game": rec.Game})
	}
	id := rec.ID
	return table.Restore(rec, g, table.Loader{
		History: func(at time.Time) (*table.HistoricRecord, error) {
			return m.findHistory(id, at), nil
		},
		Log: func(since, before time.Time, limit int) ([]*table.LogEntry, error) {
			return m.FindLogEntries(context.Background(), id, since, before, limit)
		},
	}, nil)
}

func (m *Memory) findHistory(id uuid.UUID, at time.Time) *table.HistoricRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[id][at.UnixMilli()]
	if !ok || !h.Expires.After(m.now()) {
		return nil
	}
	return &h
}

func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (*table.Table, error) {
	m.mu.Lock()
	rec, ok := m.tables[id]
	m.mu.Unlock()
	if !ok {
		return nil, errTableNotFound
	}
	return m.restore(rec)
}

func (m *Memory) Add(ctx context.Context, t *table.Table) error {
	if t.Version() != 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "table was already added")
	}
	return m.save(t, func(existing table.Record, found bool) error {
		if found {
			return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("table %s already exists", t.ID()))
		}
		return nil
	})
}

func (m *Memory) Update(ctx context.Context, t *table.Table) error {
	return m.save(t, func(existing table.Record, found bool) error {
		if !found {
			return errTableNotFound
		}
		if existing.Version != t.Version() {
			return apperrors.WithMetadata(apperrors.CodeConcurrentModification, "table was modified concurrently",
				map[string]string{"table": t.ID().String()})
		}
		return nil
	})
}

// save writes the table with its pending history and log entries. The record
// is built before locking since building it may read through the loaders.
func (m *Memory) save(t *table.Table, check func(existing table.Record, found bool) error) error {
	rec, err := t.Record()
	if err != nil {
		return err
	}
	pendingHistory := t.PendingHistoryRecords()
	pendingLog := t.Log().Pending()

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, found := m.tables[rec.ID]
	if err := check(existing, found); err != nil {
		return err
	}
	rec.Version = t.Version() + 1
	m.tables[rec.ID] = rec

	if len(pendingHistory) > 0 {
		hist := m.history[rec.ID]
		if hist == nil {
			hist = make(map[int64]table.HistoricRecord)
			m.history[rec.ID] = hist
		}
		for _, h := range pendingHistory {
			hist[h.Timestamp.UnixMilli()] = h
		}
	}
	m.logs[rec.ID] = append(m.logs[rec.ID], pendingLog...)

	t.MarkSaved(rec.Version)
	return nil
}

func (m *Memory) FindActive(_ context.Context, account uuid.UUID) ([]*table.Table, error) {
	m.mu.Lock()
	var recs []table.Record
	for _, rec := range m.tables {
		if rec.Status.IsActive() && seated(rec, account) {
			recs = append(recs, rec)
		}
	}
	m.mu.Unlock()

	sortNewestFirst(recs)
	out := make([]*table.Table, 0, len(recs))
	for _, rec := range recs {
		t, err := m.restore(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) FindByAccount(_ context.Context, account uuid.UUID, q Query) (Page, error) {
	return m.page(q, "account="+account.String(), func(rec table.Record) bool {
		return seated(rec, account)
	})
}

func (m *Memory) FindByGame(_ context.Context, gameID string, status table.Status, q Query) (Page, error) {
	return m.page(q, fmt.Sprintf("game=%s&status=%s", gameID, status), func(rec table.Record) bool {
		return rec.Game == gameID && (status == "" || rec.Status == status)
	})
}

func (m *Memory) page(q Query, filter string, match func(table.Record) bool) (Page, error) {
	pg, err := newPager(q, filter)
	if err != nil {
		return Page{}, err
	}

	m.mu.Lock()
	var recs []table.Record
	for _, rec := range m.tables {
		pos := Position{Created: rec.Created, ID: rec.ID}
		if match(rec) && q.inWindow(rec.Created) && pg.include(pos) {
			recs = append(recs, rec)
		}
	}
	m.mu.Unlock()

	sortNewestFirst(recs)
	more := len(recs) > pg.limit
	if more {
		recs = recs[:pg.limit]
	}

	var page Page
	for _, rec := range recs {
		t, err := m.restore(rec)
		if err != nil {
			return Page{}, err
		}
		page.Tables = append(page.Tables, t)
	}
	if len(recs) > 0 {
		last := recs[len(recs)-1]
		if page.Next, err = pg.next(Position{Created: last.Created, ID: last.ID}, more); err != nil {
			return Page{}, err
		}
	}
	return page, nil
}

func (m *Memory) FindLogEntries(_ context.Context, tableID uuid.UUID, since, before time.Time, limit int) ([]*table.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*table.LogEntry
	for _, e := range m.logs[tableID] {
		if !since.IsZero() && !e.Timestamp.After(since) {
			continue
		}
		if !before.IsZero() && !e.Timestamp.Before(before) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
