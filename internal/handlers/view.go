// internal/handlers/view.go
package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/table"
)

// TableView is the JSON representation of a table.
type TableView struct {
	ID         uuid.UUID        `json:"id"`
	Game       string           `json:"game"`
	Type       table.Type       `json:"type"`
	Visibility table.Visibility `json:"visibility"`
	Status     table.Status     `json:"status"`
	OwnerID    uuid.UUID        `json:"ownerId"`
	Options    game.Options     `json:"options,omitempty"`
	AutoStart  bool             `json:"autoStart"`
	Players    []table.Player   `json:"players"`
	Progress   int              `json:"progress"`
	CanUndo    bool             `json:"canUndo"`
	Version    int              `json:"version"`
	Created    time.Time        `json:"created"`
	Updated    time.Time        `json:"updated"`
	Started    *time.Time       `json:"started,omitempty"`
	Ended      *time.Time       `json:"ended,omitempty"`
	Expires    *time.Time       `json:"expires,omitempty"`
	// State is only present when it was asked for and the game has started.
	State json.RawMessage `json:"state,omitempty"`
}

func optional(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newTableView(t *table.Table, withState bool) (TableView, error) {
	v := TableView{
		ID:         t.ID(),
		Game:       t.Game().ID,
		Type:       t.Type(),
		Visibility: t.Visibility(),
		Status:     t.Status(),
		OwnerID:    t.OwnerID(),
		Options:    t.Options(),
		AutoStart:  t.AutoStart(),
		Players:    t.Players(),
		Progress:   t.Progress(),
		CanUndo:    t.CanUndo(),
		Version:    t.Version(),
		Created:    t.Created(),
		Updated:    t.Updated(),
		Started:    optional(t.Started()),
		Ended:      optional(t.Ended()),
		Expires:    t.Expires(),
	}
	if withState && t.Status() != table.StatusNew {
		doc, err := t.StateDocument()
		if err != nil {
			return TableView{}, err
		}
		v.State = doc
	}
	return v, nil
}

// PageView is one page of a table listing.
type PageView struct {
	Tables []TableView `json:"tables"`
	Next   string      `json:"next,omitempty"`
}
