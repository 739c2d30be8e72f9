package table

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the domain events a table produces.
type EventType string

const (
	EventCreated           EventType = "CREATED"
	EventStarted           EventType = "STARTED"
	EventEnded             EventType = "ENDED"
	EventAbandoned         EventType = "ABANDONED"
	EventInvited           EventType = "INVITED"
	EventJoined            EventType = "JOINED"
	EventAccepted          EventType = "ACCEPTED"
	EventRejected          EventType = "REJECTED"
	EventKicked            EventType = "KICKED"
	EventLeft              EventType = "LEFT"
	EventProposedToLeave   EventType = "PROPOSED_TO_LEAVE"
	EventAgreedToLeave     EventType = "AGREED_TO_LEAVE"
	EventOwnerChanged      EventType = "OWNER_CHANGED"
	EventVisibilityChanged EventType = "VISIBILITY_CHANGED"
	EventOptionsChanged    EventType = "OPTIONS_CHANGED"
	EventComputerAdded     EventType = "COMPUTER_ADDED"
	EventStateChanged      EventType = "STATE_CHANGED"
	EventTurnBegan         EventType = "TURN_BEGAN"
)

// Event is a domain event. Operations append events to the table; the caller
// drains them with Table.Events after the table has been saved.
type Event struct {
	Type      EventType `json:"type"`
	TableID   uuid.UUID `json:"tableId"`
	GameID    string    `json:"gameId"`
	PlayerID  uuid.UUID `json:"playerId"`
	AccountID uuid.UUID `json:"accountId"`
	Computer  bool      `json:"computer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (t *Table) emit(typ EventType, p *Player) {
	ev := Event{
		Type:      typ,
		TableID:   t.id,
		GameID:    t.game.ID,
		Timestamp: t.clock.Now(),
	}
	if p != nil {
		ev.PlayerID = p.ID
		ev.AccountID = p.AccountID
		ev.Computer = p.Computer
	}
	t.events = append(t.events, ev)
}

// Events returns the pending domain events and clears them.
func (t *Table) Events() []Event {
	evs := t.events
	t.events = nil
	return evs
}
