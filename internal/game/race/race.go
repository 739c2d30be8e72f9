// Package race is a small dice race used as the reference game. Each turn a
// player must roll, may advance by the roll, and on a six must choose between
// rolling again or banking a bonus point. First to the target wins.
package race

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/jason-s-yu/tabletop/internal/action"
	"github.com/jason-s-yu/tabletop/internal/game"
)

const (
	KindRoll    action.Kind = "roll"
	KindAdvance action.Kind = "advance"
	KindBank    action.Kind = "bank"

	EventRolled   = "ROLLED"
	EventAdvanced = "ADVANCED"
	EventBanked   = "BANKED"
	EventSkipped  = "SKIPPED"
	EventTurnOver = "TURN_OVER"
	EventFinished = "FINISHED"
	EventLeft     = "LEFT"

	DefaultTarget = 20

	// maxAutomaSteps bounds a computer turn.
	maxAutomaSteps = 64
)

// New returns the race game descriptor.
func New() *game.Game {
	return &game.Game{
		ID:         "race",
		MinPlayers: 2,
		MaxPlayers: 4,
		Colors:     []string{"red", "blue", "green", "yellow"},
		Automa:     true,
		Engine:     Engine{},
	}
}

// State is the race's live state.
type State struct {
	Order     []string       `json:"order"`
	Current   int            `json:"current"`
	Positions map[string]int `json:"positions"`
	Bonus     map[string]int `json:"bonus"`
	Target    int            `json:"target"`
	Rolled    int            `json:"rolled"`
	Queue     *action.Queue  `json:"queue"`
	Undoable  bool           `json:"undoable"`
	Ended     bool           `json:"ended"`

	listeners []game.EventListener
}

func (s *State) current() string {
	if s.Ended || len(s.Order) == 0 {
		return ""
	}
	return s.Order[s.Current]
}

func (s *State) fire(player, typ string, params ...string) {
	ev := game.Event{Player: player, Type: typ, Params: params}
	for _, l := range s.listeners {
		l.OnEvent(ev)
	}
}

func (s *State) nextTurn() {
	s.Current = (s.Current + 1) % len(s.Order)
	s.Queue = action.NewQueue(KindRoll)
	s.Rolled = 0
}

func (s *State) score(player string) int {
	return s.Positions[player] + s.Bonus[player]
}

// Engine implements game.Engine for the race.
type Engine struct{}

var _ game.Engine = Engine{}

func asState(s game.State) *State {
	st, ok := s.(*State)
	if !ok {
		panic(fmt.Sprintf("race: unexpected state type %T", s))
	}
	return st
}

func (Engine) Start(seats []game.Seat, opts game.Options, _ *rand.Rand) (game.State, error) {
	if len(seats) < 2 {
		return nil, game.Violation("MIN_PLAYERS", "race needs at least two players")
	}
	target := DefaultTarget
	if v, ok := opts["target"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, game.Violation("INVALID_OPTION", fmt.Sprintf("invalid target %q", v))
		}
		target = n
	}
	s := &State{
		Positions: make(map[string]int, len(seats)),
		Bonus:     make(map[string]int, len(seats)),
		Target:    target,
		Queue:     action.NewQueue(KindRoll),
	}
	for _, seat := range seats {
		s.Order = append(s.Order, seat.ID)
		s.Positions[seat.ID] = 0
	}
	return s, nil
}

func checkTurn(s *State, player string) error {
	if s.Ended {
		return game.Violation("GAME_ENDED", "race is over")
	}
	if s.current() != player {
		return game.Violation("NOT_CURRENT_PLAYER", "not the current player")
	}
	return nil
}

func (Engine) Perform(gs game.State, player string, a game.Action, rng *rand.Rand) error {
	s := asState(gs)
	if err := checkTurn(s, player); err != nil {
		return err
	}
	if err := s.Queue.Perform(a.Kind); err != nil {
		return err
	}

	switch a.Kind {
	case KindRoll:
		s.Rolled = rng.Intn(6) + 1
		s.Undoable = false
		s.fire(player, EventRolled, strconv.Itoa(s.Rolled))
		s.Queue.AddFirst(action.AnyOf(action.Single(KindAdvance)))

	case KindAdvance:
		s.Positions[player] += s.Rolled
		s.Undoable = true
		s.fire(player, EventAdvanced, strconv.Itoa(s.Positions[player]))
		if s.Positions[player] >= s.Target {
			s.Ended = true
			s.Queue.Clear()
			s.fire(player, EventFinished)
			return nil
		}
		if s.Rolled == 6 {
			s.Queue.AddFirst(action.Choice(action.Single(KindRoll), action.Single(KindBank)))
		}

	case KindBank:
		s.Bonus[player]++
		s.Undoable = true
		s.fire(player, EventBanked, strconv.Itoa(s.Bonus[player]))
	}

	if s.Queue.IsEmpty() {
		s.fire(player, EventTurnOver)
		s.nextTurn()
	}
	return nil
}

func (Engine) Skip(gs game.State, player string, _ *rand.Rand) error {
	s := asState(gs)
	if err := checkTurn(s, player); err != nil {
		return err
	}
	for _, k := range s.Queue.PossibleKinds() {
		if !s.Queue.CanSkip(k) {
			continue
		}
		if err := s.Queue.Skip(k); err != nil {
			return err
		}
		s.Undoable = true
		s.fire(player, EventSkipped, string(k))
		if s.Queue.IsEmpty() {
			s.fire(player, EventTurnOver)
			s.nextTurn()
		}
		return nil
	}
	return game.Violation("CANNOT_SKIP", "nothing to skip")
}

// EndTurn forfeits whatever is left of the turn.
func (Engine) EndTurn(gs game.State, player string, _ *rand.Rand) error {
	s := asState(gs)
	if err := checkTurn(s, player); err != nil {
		return err
	}
	s.Queue.Clear()
	s.Undoable = false
	s.fire(player, EventTurnOver)
	s.nextTurn()
	return nil
}

func (Engine) Leave(gs game.State, player string, _ *rand.Rand) error {
	s := asState(gs)
	idx := -1
	for i, p := range s.Order {
		if p == player {
			idx = i
			break
		}
	}
	if idx < 0 {
		return game.Violation("NOT_IN_RACE", "player is not racing")
	}
	wasCurrent := idx == s.Current && !s.Ended
	s.Order = append(s.Order[:idx], s.Order[idx+1:]...)
	s.Undoable = false
	s.fire(player, EventLeft)

	if len(s.Order) < 2 {
		s.Ended = true
		s.Queue.Clear()
		s.Current = 0
		return nil
	}
	if idx < s.Current {
		s.Current--
	}
	if wasCurrent {
		s.Current %= len(s.Order)
		s.Queue = action.NewQueue(KindRoll)
		s.Rolled = 0
	}
	return nil
}

// ExecuteAutoma plays a computer turn: always roll, always advance, and on a
// six always roll again.
func (e Engine) ExecuteAutoma(gs game.State, player string, rng *rand.Rand) error {
	s := asState(gs)
	if err := checkTurn(s, player); err != nil {
		return err
	}
	for i := 0; i < maxAutomaSteps && s.current() == player; i++ {
		var err error
		switch {
		case s.Queue.CanPerform(KindRoll):
			err = e.Perform(s, player, game.Action{Kind: KindRoll}, rng)
		case s.Queue.CanPerform(KindAdvance):
			err = e.Perform(s, player, game.Action{Kind: KindAdvance}, rng)
		case s.Queue.CanPerform(KindBank):
			err = e.Perform(s, player, game.Action{Kind: KindBank}, rng)
		default:
			err = e.EndTurn(s, player, rng)
		}
		if err != nil {
			return err
		}
	}
	if s.current() == player {
		return e.EndTurn(s, player, rng)
	}
	return nil
}

func (Engine) CurrentPlayers(gs game.State) []string {
	s := asState(gs)
	if p := s.current(); p != "" {
		return []string{p}
	}
	return nil
}

func (Engine) IsEnded(gs game.State) bool {
	return asState(gs).Ended
}

// Winners returns the remaining players sharing the best score.
func (Engine) Winners(gs game.State) []string {
	s := asState(gs)
	best := -1
	var winners []string
	for _, p := range s.Order {
		switch sc := s.score(p); {
		case sc > best:
			best = sc
			winners = []string{p}
		case sc == best:
			winners = append(winners, p)
		}
	}
	return winners
}

func (Engine) Score(gs game.State, player string) (int, bool) {
	s := asState(gs)
	if _, ok := s.Positions[player]; !ok {
		return 0, false
	}
	return s.score(player), true
}

// CanUndo is false right after a roll so a player cannot re-roll by undoing.
func (Engine) CanUndo(gs game.State) bool {
	s := asState(gs)
	return s.Undoable && !s.Ended
}

func (Engine) Progress(gs game.State) int {
	s := asState(gs)
	best := 0
	for _, pos := range s.Positions {
		if pos > best {
			best = pos
		}
	}
	if best >= s.Target {
		return 100
	}
	return best * 100 / s.Target
}

func (Engine) AddEventListener(gs game.State, l game.EventListener) {
	s := asState(gs)
	s.listeners = append(s.listeners, l)
}

func (Engine) RemoveEventListener(gs game.State, l game.EventListener) {
	s := asState(gs)
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (Engine) Encode(gs game.State) (json.RawMessage, error) {
	return json.Marshal(asState(gs))
}

func (Engine) Decode(doc json.RawMessage) (game.State, error) {
	var s State
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode race state: %w", err)
	}
	if s.Queue == nil {
		s.Queue = &action.Queue{}
	}
	return &s, nil
}
