// Package table implements the session aggregate: one group of players
// playing one game. A Table owns its roster, lifecycle, log and the chain of
// game states, and mediates every mutation through the game's engine.
//
// A Table is not safe for concurrent use. Each table has a single writer;
// concurrent writers are detected by the store through the version counter.
package table

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/lazy"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/random"
)

// Table is the session aggregate.
type Table struct {
	id         uuid.UUID
	game       *game.Game
	typ        Type
	visibility Visibility
	status     Status
	ownerID    uuid.UUID
	options    game.Options
	autoStart  bool

	created time.Time
	updated time.Time
	started time.Time
	ended   time.Time

	progress int
	version  int

	players []*Player
	log     *Log

	current    *lazy.Lazy[*CurrentState]
	currentRec *CurrentRecord
	history    []*HistoricState

	events  []Event
	clock   *Clock
	newRand func() (*rand.Rand, error)
}

// Settings are the choices made when creating a table.
type Settings struct {
	Type      Type
	Options   game.Options
	AutoStart bool
}

// Create opens a new table owned by owner, who takes the first seat.
func Create(g *game.Game, owner uuid.UUID, s Settings, clock *Clock) (*Table, error) {
	if g == nil {
		return nil, apperrors.New(apperrors.CodeGameNotFound, "game is required")
	}
	if s.Type == "" {
		s.Type = TypeRealtime
	}
	if !s.Type.valid() {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid table type %q", s.Type))
	}
	if clock == nil {
		clock = NewClock(nil)
	}

	now := clock.Now()
	ownerPlayer := newPlayer(owner, PlayerAccepted, now)
	t := &Table{
		id:         uuid.New(),
		game:       g,
		typ:        s.Type,
		visibility: VisibilityPrivate,
		status:     StatusNew,
		ownerID:    owner,
		options:    s.Options.Clone(),
		autoStart:  s.AutoStart,
		created:    now,
		updated:    now,
		players:    []*Player{ownerPlayer},
		log:        newLog(nil),
		clock:      clock,
		newRand:    random.New,
	}
	t.addLog(ownerPlayer, LogCreate)
	t.emit(EventCreated, ownerPlayer)
	return t, nil
}

func (t *Table) ID() uuid.UUID { return t.id }
func (t *Table) Game() *game.Game { return t.game }
func (t *Table) Type() Type { return t.typ }
func (t *Table) Visibility() Visibility { return t.visibility }
func (t *Table) Status() Status { return t.status }
func (t *Table) OwnerID() uuid.UUID { return t.ownerID }
func (t *Table) Options() game.Options { return t.options.Clone() }
func (t *Table) AutoStart() bool { return t.autoStart }
func (t *Table) Created() time.Time { return t.created }
func (t *Table) Updated() time.Time { return t.updated }
func (t *Table) Started() time.Time { return t.started }
func (t *Table) Ended() time.Time { return t.ended }
func (t *Table) Progress() int { return t.progress }
func (t *Table) Version() int { return t.version }
func (t *Table) Log() *Log { return t.log }
func (t *Table) IsActive() bool { return t.status.IsActive() }
func (t *Table) PendingHistory() []*HistoricState { return t.history }

// Players returns copies of the roster in seating order.
func (t *Table) Players() []Player {
	out := make([]Player, len(t.players))
	for i, p := range t.players {
		out[i] = *p
	}
	return out
}

// Player returns a copy of the player with the given id.
func (t *Table) Player(id uuid.UUID) (Player, bool) {
	if p := t.playerByID(id); p != nil {
		return *p, true
	}
	return Player{}, false
}

// PlayerByAccount returns a copy of the player seated for account.
func (t *Table) PlayerByAccount(account uuid.UUID) (Player, bool) {
	if p := t.playerByAccount(account); p != nil {
		return *p, true
	}
	return Player{}, false
}

// CurrentPlayers returns copies of the players holding the turn.
func (t *Table) CurrentPlayers() []Player {
	var out []Player
	for _, p := range t.players {
		if p.Turn {
			out = append(out, *p)
		}
	}
	return out
}

// Expires returns the retention deadline of the table, or nil while it is
// being played.
func (t *Table) Expires() *time.Time {
	var at time.Time
	switch t.status {
	case StatusNew:
		at = t.created.Add(retentionNew)
	case StatusEnded:
		at = t.ended.Add(retentionAfterEnded)
	case StatusAbandoned:
		if t.progress >= minProgressToKeepHistory {
			at = t.updated.Add(retentionAfterEnded)
		} else {
			at = t.updated.Add(retentionAfterAbandoned)
		}
	default:
		return nil
	}
	return &at
}

// MarkSaved is called by a store once the table has been written with the
// given version. It clears everything pending persistence.
func (t *Table) MarkSaved(version int) {
	t.version = version
	t.log.clearPending()
	t.history = nil
	if t.current != nil && t.current.Resolved() {
		t.currentRec = nil
	}
}

func (t *Table) playerByID(id uuid.UUID) *Player {
	for _, p := range t.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Table) playerByAccount(account uuid.UUID) *Player {
	if account == uuid.Nil {
		return nil
	}
	for _, p := range t.players {
		if !p.Computer && p.AccountID == account {
			return p
		}
	}
	return nil
}

func (t *Table) ownerPlayer() *Player {
	if p := t.playerByAccount(t.ownerID); p != nil {
		return p
	}
	return t.players[0]
}

func (t *Table) mustPlayer(account uuid.UUID) (*Player, error) {
	p := t.playerByAccount(account)
	if p == nil {
		return nil, errNotPlayer
	}
	return p, nil
}

func (t *Table) addLog(p *Player, typ LogType, params ...string) {
	t.log.add(newLogEntry(p, t.clock.Next(), typ, params...))
}

func (t *Table) touch() {
	t.updated = t.clock.Now()
}

func (t *Table) playingCount() int {
	n := 0
	for _, p := range t.players {
		if p.IsPlaying() {
			n++
		}
	}
	return n
}

// otherHumansPlaying returns the playing humans other than account.
func (t *Table) otherHumansPlaying(account uuid.UUID) []*Player {
	var out []*Player
	for _, p := range t.players {
		if !p.Computer && p.IsPlaying() && p.AccountID != account {
			out = append(out, p)
		}
	}
	return out
}

func (t *Table) removePlayer(target *Player) {
	for i, p := range t.players {
		if p == target {
			t.players = append(t.players[:i], t.players[i+1:]...)
			return
		}
	}
}

var (
	errNotPlayer      = apperrors.New(apperrors.CodeNotPlayerInGame, "not a player at this table")
	errMustBeOwner    = apperrors.New(apperrors.CodeMustBeOwner, "only the owner may do this")
	errNotStarted     = apperrors.New(apperrors.CodeGameNotStarted, "game not started")
	errAlreadyStarted = apperrors.New(apperrors.CodeGameAlreadyStarted, "game already started")
	errAlreadyEnded   = apperrors.New(apperrors.CodeGameAlreadyEnded, "game already ended")
	errAbandoned      = apperrors.New(apperrors.CodeAlreadyAbandoned, "game already abandoned")
	errNotYourTurn    = apperrors.New(apperrors.CodeNotYourTurn, "not your turn")
	errMaxPlayers     = apperrors.New(apperrors.CodeExceedsMaxPlayers, "table is full")
	errAlreadyInvited = apperrors.New(apperrors.CodeAlreadyInvited, "already invited")
)

func (t *Table) checkNew() error {
	switch t.status {
	case StatusStarted:
		return errAlreadyStarted
	case StatusEnded:
		return errAlreadyEnded
	case StatusAbandoned:
		return errAbandoned
	}
	return nil
}

func (t *Table) checkActive() error {
	switch t.status {
	case StatusEnded:
		return errAlreadyEnded
	case StatusAbandoned:
		return errAbandoned
	}
	return nil
}

func (t *Table) checkStarted() error {
	if t.status != StatusStarted {
		return errNotStarted
	}
	return nil
}

func (t *Table) checkOwner(account uuid.UUID) error {
	if account != t.ownerID {
		return errMustBeOwner
	}
	return nil
}

func (t *Table) checkTurn(p *Player) error {
	if !p.Turn {
		return errNotYourTurn
	}
	return nil
}

func (t *Table) inGameError(err error) error {
	meta := map[string]string{"game": t.game.ID}
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		meta["reason"] = string(code)
	}
	return apperrors.WrapWithMetadata(apperrors.CodeInGameError,
		fmt.Sprintf("in-game error in %s", t.game.ID), meta, err)
}
