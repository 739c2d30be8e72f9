package table

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/lazy"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// capture buffers the engine events of one mutation.
type capture struct {
	events []game.Event
}

func (c *capture) OnEvent(ev game.Event) {
	c.events = append(c.events, ev)
}

func (t *Table) currentState() (*CurrentState, error) {
	if t.current == nil {
		return nil, errNotStarted
	}
	return t.current.Get()
}

// State returns the live game state.
func (t *Table) State() (game.State, error) {
	cur, err := t.currentState()
	if err != nil {
		return nil, err
	}
	return cur.state, nil
}

// StateDocument returns the live game state in the engine's encoded form.
func (t *Table) StateDocument() (json.RawMessage, error) {
	cur, err := t.currentState()
	if err != nil {
		return nil, err
	}
	return t.game.Engine.Encode(cur.state)
}

// Start deals colors, builds the initial game state and hands out the first
// turns. Players that have not accepted are dropped.
func (t *Table) Start(actor uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	if err := t.checkOwner(actor); err != nil {
		return err
	}
	return t.start()
}

func (t *Table) start() error {
	var accepted []*Player
	for _, p := range t.players {
		if p.Status == PlayerAccepted {
			accepted = append(accepted, p)
		}
	}
	if len(accepted) < t.game.MinPlayers {
		return apperrors.WithMetadata(apperrors.CodeMinPlayers, "not enough players",
			map[string]string{"min": fmt.Sprint(t.game.MinPlayers)})
	}

	rng, err := t.newRand()
	if err != nil {
		return err
	}
	t.dealColors(accepted, rng)

	seats := make([]game.Seat, len(accepted))
	for i, p := range accepted {
		seats[i] = game.Seat{ID: p.ID.String(), Color: p.Color, Computer: p.Computer}
	}
	state, err := t.game.Engine.Start(seats, t.options.Clone(), rng)
	if err != nil {
		return t.inGameError(err)
	}

	t.players = accepted
	t.status = StatusStarted
	t.started = t.clock.Now()
	t.updated = t.started
	cur := &CurrentState{state: state}
	t.current = lazy.Of(cur)
	t.currentRec = nil

	t.addLog(t.ownerPlayer(), LogStart)
	t.emit(EventStarted, t.ownerPlayer())
	t.afterStateChange(cur)
	return nil
}

// dealColors gives every player without a color one drawn uniformly from
// the remaining palette.
func (t *Table) dealColors(players []*Player, rng *rand.Rand) {
	taken := make(map[string]bool)
	for _, p := range players {
		if p.Color != "" {
			taken[p.Color] = true
		}
	}
	var free []string
	for _, c := range t.game.Colors {
		if !taken[c] {
			free = append(free, c)
		}
	}
	rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	for _, p := range players {
		if p.Color == "" && len(free) > 0 {
			p.Color = free[len(free)-1]
			free = free[:len(free)-1]
		}
	}
}

func (t *Table) turnHolder(account uuid.UUID) (*Player, error) {
	if err := t.checkStarted(); err != nil {
		return nil, err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return nil, err
	}
	if err := t.checkTurn(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Perform executes a move for the player seated for account.
func (t *Table) Perform(account uuid.UUID, a game.Action) error {
	p, err := t.turnHolder(account)
	if err != nil {
		return err
	}
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.Perform(s, p.ID.String(), a, rng)
	})
}

// Skip passes on the player's current optional obligation.
func (t *Table) Skip(account uuid.UUID) error {
	p, err := t.turnHolder(account)
	if err != nil {
		return err
	}
	t.addLog(p, LogSkip)
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.Skip(s, p.ID.String(), rng)
	})
}

func (t *Table) EndTurn(account uuid.UUID) error {
	p, err := t.turnHolder(account)
	if err != nil {
		return err
	}
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.EndTurn(s, p.ID.String(), rng)
	})
}

// ExecuteAutoma lets the engine play the turn of a computer player.
func (t *Table) ExecuteAutoma(playerID uuid.UUID) error {
	if err := t.checkStarted(); err != nil {
		return err
	}
	p := t.playerByID(playerID)
	if p == nil {
		return errNotPlayer
	}
	if !p.Computer {
		return apperrors.New(apperrors.CodeNotComputer, "player is not a computer")
	}
	if err := t.checkTurn(p); err != nil {
		return err
	}
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.ExecuteAutoma(s, p.ID.String(), rng)
	})
}

// ForceEndTurn ends the turn of a player who has run past their turn limit.
// Any playing participant may force it.
func (t *Table) ForceEndTurn(actor, playerID uuid.UUID) error {
	if err := t.checkStarted(); err != nil {
		return err
	}
	forcer := t.playerByAccount(actor)
	if forcer == nil || !forcer.IsPlaying() {
		return errNotPlayer
	}
	target := t.playerByID(playerID)
	if target == nil {
		return errNotPlayer
	}
	if !target.Turn {
		return apperrors.New(apperrors.CodeCannotForceEndTurn, "player does not hold the turn")
	}
	if err := target.forceEndTurn(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(forcer, LogForceEndTurn, target.ID.String())
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.EndTurn(s, target.ID.String(), rng)
	})
}

// CanUndo reports whether Undo would be allowed for the turn holder.
func (t *Table) CanUndo() bool {
	if t.status != StatusStarted {
		return false
	}
	cur, err := t.currentState()
	if err != nil {
		return false
	}
	return t.undoable(cur)
}

func (t *Table) undoable(cur *CurrentState) bool {
	eng := t.game.Engine
	return !cur.reverted &&
		cur.previous != nil &&
		eng.CanUndo(cur.state) &&
		len(eng.CurrentPlayers(cur.state)) == 1
}

// Undo reverts the most recent state change. It never goes back more than
// one step: a second undo fails until another change has been made.
func (t *Table) Undo(account uuid.UUID) error {
	p, err := t.turnHolder(account)
	if err != nil {
		return err
	}
	cur, err := t.currentState()
	if err != nil {
		return err
	}
	if !t.undoable(cur) {
		return apperrors.New(apperrors.CodeCannotUndo, "undo not allowed")
	}
	prev, err := cur.Previous()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeHistoryNotAvailable, "load previous state", err)
	}
	if prev == nil {
		return apperrors.New(apperrors.CodeHistoryNotAvailable, "previous state expired")
	}

	t.addLog(p, LogUndo)
	if err := cur.revertTo(t.game.Engine, prev); err != nil {
		return fmt.Errorf("revert state: %w", err)
	}
	t.afterStateChange(cur)
	return nil
}

// runStateChange applies one engine mutation: it snapshots the state,
// captures engine events for exactly the duration of the call, then advances
// the history chain by one snapshot and recomputes turns.
func (t *Table) runStateChange(change func(s game.State, rng *rand.Rand) error) error {
	cur, err := t.currentState()
	if err != nil {
		return err
	}
	eng := t.game.Engine
	rng, err := t.newRand()
	if err != nil {
		return err
	}
	snap, err := cur.snapshot(eng, t.clock.Next())
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}

	listener := &capture{}
	eng.AddEventListener(cur.state, listener)
	err = func() error {
		defer eng.RemoveEventListener(cur.state, listener)
		return change(cur.state, rng)
	}()
	if err != nil {
		return t.inGameError(err)
	}

	for _, ev := range listener.events {
		t.log.add(newInGameLogEntry(t.eventPlayer(ev.Player), t.clock.Next(), ev))
	}
	cur.next(snap)
	t.history = append(t.history, snap)
	t.afterStateChange(cur)
	return nil
}

func (t *Table) eventPlayer(name string) *Player {
	if id, err := uuid.Parse(name); err == nil {
		if p := t.playerByID(id); p != nil {
			return p
		}
	}
	return t.ownerPlayer()
}

// afterStateChange moves turns to whoever the engine now reports as current
// and finishes the game once the engine reports it ended.
func (t *Table) afterStateChange(cur *CurrentState) {
	eng := t.game.Engine
	ended := eng.IsEnded(cur.state)

	if t.status == StatusStarted {
		current := make(map[uuid.UUID]bool)
		for _, name := range eng.CurrentPlayers(cur.state) {
			if id, err := uuid.Parse(name); err == nil {
				current[id] = true
			}
		}
		for _, p := range t.players {
			if p.Turn && (ended || !current[p.ID] || !p.IsPlaying()) {
				t.endTurn(p)
			}
		}
		if !ended {
			for _, p := range t.players {
				if !p.Turn && current[p.ID] && p.IsPlaying() {
					t.beginTurn(p)
				}
			}
		}
	}

	t.touch()
	t.emit(EventStateChanged, nil)

	if ended && t.status == StatusStarted {
		t.progress = 100
		t.end(cur)
		return
	}
	t.progress = eng.Progress(cur.state)
	t.assignScores(cur)
}

func (t *Table) beginTurn(p *Player) {
	p.beginTurn(t.clock.Now().Add(t.typ.TurnLimit()))
	t.addLog(p, LogBeginTurn)
	t.emit(EventTurnBegan, p)
}

func (t *Table) endTurn(p *Player) {
	p.endTurn()
	if p.Status != PlayerLeft {
		t.addLog(p, LogEndTurn)
	}
}

func (t *Table) end(cur *CurrentState) {
	t.status = StatusEnded
	t.ended = t.clock.Now()
	t.assignScores(cur)
	t.addLog(t.ownerPlayer(), LogEnd)
	t.emit(EventEnded, t.ownerPlayer())
}

func (t *Table) assignScores(cur *CurrentState) {
	eng := t.game.Engine
	winners := make(map[string]bool)
	if t.status == StatusEnded {
		for _, w := range eng.Winners(cur.state) {
			winners[w] = true
		}
	}
	for _, p := range t.players {
		if !p.IsPlaying() {
			p.assignScore(0, false)
			continue
		}
		if score, ok := eng.Score(cur.state, p.ID.String()); ok {
			p.assignScore(score, winners[p.ID.String()])
		}
	}
}
