package table

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/lazy"
	"github.com/jason-s-yu/tabletop/internal/random"
)

// Record is the persisted form of a table.
type Record struct {
	ID            uuid.UUID    `json:"id"`
	Game          string       `json:"game"`
	Type          Type         `json:"type"`
	Visibility    Visibility   `json:"visibility"`
	Status        Status       `json:"status"`
	OwnerID       uuid.UUID    `json:"ownerId"`
	Options       game.Options `json:"options,omitempty"`
	AutoStart     bool         `json:"autoStart"`
	Created       time.Time    `json:"created"`
	Updated       time.Time    `json:"updated"`
	Started       *time.Time   `json:"started,omitempty"`
	Ended         *time.Time   `json:"ended,omitempty"`
	Expires       *time.Time   `json:"expires,omitempty"`
	Progress      int          `json:"progress"`
	Version       int          `json:"version"`
	LastTimestamp time.Time    `json:"lastTimestamp"`
	Players       []Player     `json:"players"`
	// Current is nil until the game has started.
	Current *CurrentRecord `json:"current,omitempty"`
}

// CurrentRecord is the persisted live game state.
type CurrentRecord struct {
	State    json.RawMessage `json:"state"`
	Previous *time.Time      `json:"previous,omitempty"`
	Reverted bool            `json:"reverted,omitempty"`
}

// HistoricRecord is one persisted snapshot of the historic chain.
type HistoricRecord struct {
	TableID   uuid.UUID       `json:"tableId"`
	Timestamp time.Time       `json:"timestamp"`
	Previous  *time.Time      `json:"previous,omitempty"`
	State     json.RawMessage `json:"state"`
	Expires   time.Time       `json:"expires"`
}

// Loader reads the lazily loaded parts of a restored table. History returns
// nil, nil when the snapshot is gone or expired.
type Loader struct {
	History func(at time.Time) (*HistoricRecord, error)
	Log     LogLoader
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Record returns the persisted form of the table. A current state that was
// never loaded since the last restore is written back as it was read.
func (t *Table) Record() (Record, error) {
	rec := Record{
		ID:            t.id,
		Game:          t.game.ID,
		Type:          t.typ,
		Visibility:    t.visibility,
		Status:        t.status,
		OwnerID:       t.ownerID,
		Options:       t.options.Clone(),
		AutoStart:     t.autoStart,
		Created:       t.created,
		Updated:       t.updated,
		Started:       optionalTime(t.started),
		Ended:         optionalTime(t.ended),
		Expires:       t.Expires(),
		Progress:      t.progress,
		Version:       t.version,
		LastTimestamp: t.clock.Last(),
		Players:       t.Players(),
	}

	switch {
	case t.current == nil:
	case !t.current.Resolved() && t.currentRec != nil:
		cr := *t.currentRec
		rec.Current = &cr
	default:
		cur, err := t.current.Get()
		if err != nil {
			return Record{}, err
		}
		doc, err := t.game.Engine.Encode(cur.state)
		if err != nil {
			return Record{}, fmt.Errorf("encode state: %w", err)
		}
		rec.Current = &CurrentRecord{State: doc, Previous: cur.previousAt, Reverted: cur.reverted}
	}
	return rec, nil
}

// PendingHistoryRecords returns the snapshots taken since the last save,
// oldest first.
func (t *Table) PendingHistoryRecords() []HistoricRecord {
	out := make([]HistoricRecord, len(t.history))
	for i, h := range t.history {
		out[i] = HistoricRecord{
			TableID:   t.id,
			Timestamp: h.Timestamp,
			Previous:  h.PreviousAt,
			State:     h.Document,
			Expires:   h.Expires,
		}
	}
	return out
}

// Restore rebuilds a table from its record. The game state and the historic
// chain are only loaded when first needed.
func Restore(rec Record, g *game.Game, loader Loader, clock *Clock) (*Table, error) {
	if g == nil || g.ID != rec.Game {
		return nil, fmt.Errorf("restore table %s: game %q not available", rec.ID, rec.Game)
	}
	if clock == nil {
		clock = NewClock(nil)
	}
	clock.Observe(rec.LastTimestamp)

	t := &Table{
		id:         rec.ID,
		game:       g,
		typ:        rec.Type,
		visibility: rec.Visibility,
		status:     rec.Status,
		ownerID:    rec.OwnerID,
		options:    rec.Options.Clone(),
		autoStart:  rec.AutoStart,
		created:    rec.Created,
		updated:    rec.Updated,
		progress:   rec.Progress,
		version:    rec.Version,
		log:        newLog(loader.Log),
		clock:      clock,
		newRand:    random.New,
	}
	if rec.Started != nil {
		t.started = *rec.Started
	}
	if rec.Ended != nil {
		t.ended = *rec.Ended
	}
	for i := range rec.Players {
		p := rec.Players[i]
		t.players = append(t.players, &p)
	}

	if rec.Current != nil {
		cr := *rec.Current
		t.currentRec = &cr
		t.current = lazy.Defer(func() (*CurrentState, error) {
			s, err := g.Engine.Decode(cr.State)
			if err != nil {
				return nil, fmt.Errorf("decode state of table %s: %w", rec.ID, err)
			}
			cur := &CurrentState{state: s, previousAt: cr.Previous, reverted: cr.Reverted}
			if cr.Previous != nil {
				cur.previous = linkHistory(*cr.Previous, loader.History)
			}
			return cur, nil
		})
	}
	return t, nil
}

func linkHistory(at time.Time, load func(time.Time) (*HistoricRecord, error)) *lazy.Lazy[*HistoricState] {
	if load == nil {
		return nil
	}
	return lazy.Defer(func() (*HistoricState, error) {
		hr, err := load(at)
		if err != nil || hr == nil {
			return nil, err
		}
		h := &HistoricState{
			Timestamp:  hr.Timestamp,
			PreviousAt: hr.Previous,
			Document:   hr.State,
			Expires:    hr.Expires,
		}
		if hr.Previous != nil {
			h.previous = linkHistory(*hr.Previous, load)
		}
		return h, nil
	})
}
