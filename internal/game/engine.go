// internal/game/engine.go
package game

import (
	"encoding/json"
	"math/rand"

	"github.com/jason-s-yu/tabletop/internal/action"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// State is a game's live state. It is opaque to the table; only the Engine
// that produced it knows its shape.
type State any

// Options are the game-specific settings chosen when a table is created.
type Options map[string]string

// Clone returns a copy of the options, or nil.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Seat identifies a player to the engine at start.
type Seat struct {
	ID       string `json:"id"`
	Color    string `json:"color"`
	Computer bool   `json:"computer"`
}

// Action is a player's in-game move.
type Action struct {
	Kind    action.Kind            `json:"kind"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Event is a domain event emitted by an engine while it mutates its state.
type Event struct {
	Player string   `json:"player,omitempty"`
	Type   string   `json:"type"`
	Params []string `json:"params,omitempty"`
}

// EventListener receives the events of a single mutation. Engines compare
// listeners by identity when removing them.
type EventListener interface {
	OnEvent(ev Event)
}

// Engine is the capability set every pluggable game supplies. Mutating calls
// return a rule violation (see Violation) when the move is illegal.
type Engine interface {
	Start(seats []Seat, opts Options, rng *rand.Rand) (State, error)

	Perform(s State, player string, a Action, rng *rand.Rand) error
	Skip(s State, player string, rng *rand.Rand) error
	EndTurn(s State, player string, rng *rand.Rand) error
	Leave(s State, player string, rng *rand.Rand) error
	ExecuteAutoma(s State, player string, rng *rand.Rand) error

	CurrentPlayers(s State) []string
	IsEnded(s State) bool
	Winners(s State) []string
	Score(s State, player string) (int, bool)
	CanUndo(s State) bool
	Progress(s State) int

	AddEventListener(s State, l EventListener)
	RemoveEventListener(s State, l EventListener)

	Encode(s State) (json.RawMessage, error)
	Decode(doc json.RawMessage) (State, error)
}

// Violation builds the error an engine returns for an illegal move.
func Violation(code, message string) error {
	return apperrors.New(apperrors.Code(code), message)
}
