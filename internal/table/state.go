package table

import (
	"encoding/json"
	"time"

	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/lazy"
)

// HistoricState is a frozen snapshot of the game state taken right before a
// mutation. Snapshots link backwards to the one before them.
type HistoricState struct {
	Timestamp time.Time
	// PreviousAt is the timestamp of the snapshot before this one, if any.
	PreviousAt *time.Time
	Document   json.RawMessage
	Expires    time.Time

	previous *lazy.Lazy[*HistoricState]
}

// Previous resolves the snapshot before this one. It returns nil when the
// chain ends here.
func (h *HistoricState) Previous() (*HistoricState, error) {
	if h.previous == nil {
		return nil, nil
	}
	return h.previous.Get()
}

// CurrentState is the live game state together with a link to the snapshot
// it was derived from.
type CurrentState struct {
	state      game.State
	previous   *lazy.Lazy[*HistoricState]
	previousAt *time.Time
	// reverted is set by undo and cleared by the next mutation.
	reverted bool
}

func (c *CurrentState) State() game.State {
	return c.state
}

// Previous resolves the most recent snapshot, or nil if there is none.
func (c *CurrentState) Previous() (*HistoricState, error) {
	if c.previous == nil {
		return nil, nil
	}
	return c.previous.Get()
}

func (c *CurrentState) snapshot(eng game.Engine, at time.Time) (*HistoricState, error) {
	doc, err := eng.Encode(c.state)
	if err != nil {
		return nil, err
	}
	return &HistoricState{
		Timestamp:  at,
		PreviousAt: c.previousAt,
		Document:   doc,
		Expires:    at.Add(logRetention),
		previous:   c.previous,
	}, nil
}

// next links the current state to the snapshot taken before its mutation.
func (c *CurrentState) next(h *HistoricState) {
	at := h.Timestamp
	c.previous = lazy.Of(h)
	c.previousAt = &at
	c.reverted = false
}

// revertTo replaces the live state with the snapshot's and continues the
// chain from the snapshot's own predecessor.
func (c *CurrentState) revertTo(eng game.Engine, h *HistoricState) error {
	s, err := eng.Decode(h.Document)
	if err != nil {
		return err
	}
	c.state = s
	c.previous = h.previous
	c.previousAt = h.PreviousAt
	c.reverted = true
	return nil
}
