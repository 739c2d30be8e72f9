package table

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

func (t *Table) checkRoom(account uuid.UUID) error {
	if len(t.players) >= t.game.MaxPlayers {
		return errMaxPlayers
	}
	if account != uuid.Nil && t.playerByAccount(account) != nil {
		return errAlreadyInvited
	}
	return nil
}

// Invite seats account as an invited player. Only the owner may invite.
func (t *Table) Invite(actor, account uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	if err := t.checkOwner(actor); err != nil {
		return err
	}
	if err := t.checkRoom(account); err != nil {
		return err
	}

	p := newPlayer(account, PlayerInvited, t.clock.Now())
	t.players = append(t.players, p)
	t.addLog(t.ownerPlayer(), LogInvite, account.String())
	t.emit(EventInvited, p)
	t.touch()
	return nil
}

// Join seats account as an accepted player on a public table.
func (t *Table) Join(account uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	if t.visibility != VisibilityPublic {
		return apperrors.New(apperrors.CodeNotPublic, "table is not public")
	}
	if err := t.checkRoom(account); err != nil {
		return err
	}

	p := newPlayer(account, PlayerAccepted, t.clock.Now())
	t.players = append(t.players, p)
	t.addLog(p, LogJoin, account.String())
	t.emit(EventJoined, p)
	t.touch()
	return t.autoStartIfPossible()
}

// Accept answers an invitation with yes.
func (t *Table) Accept(account uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return err
	}
	if err := p.accept(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(p, LogAccept)
	t.emit(EventAccepted, p)
	t.touch()
	return t.autoStartIfPossible()
}

// Reject answers an invitation with no and frees the seat.
func (t *Table) Reject(account uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return err
	}
	if err := p.reject(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(p, LogReject)
	t.removePlayer(p)
	t.emit(EventRejected, p)
	t.touch()
	return nil
}

// Kick removes a player from a new table. Only the owner may kick, and the
// owner cannot kick themselves.
func (t *Table) Kick(actor, playerID uuid.UUID) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	if err := t.checkOwner(actor); err != nil {
		return err
	}
	p := t.playerByID(playerID)
	if p == nil {
		return errNotPlayer
	}
	if !p.Computer && p.AccountID == t.ownerID {
		return apperrors.New(apperrors.CodeCannotKick, "owner cannot be kicked")
	}

	t.addLog(t.ownerPlayer(), LogKick, p.ID.String())
	t.removePlayer(p)
	t.emit(EventKicked, p)
	t.touch()
	return nil
}

// AddComputer seats a computer player, if the game supports one.
func (t *Table) AddComputer(actor uuid.UUID) (Player, error) {
	if err := t.checkNew(); err != nil {
		return Player{}, err
	}
	if err := t.checkOwner(actor); err != nil {
		return Player{}, err
	}
	if !t.game.Automa {
		return Player{}, apperrors.New(apperrors.CodeComputerNotSupported,
			"game "+t.game.ID+" does not support computer players")
	}
	if err := t.checkRoom(uuid.Nil); err != nil {
		return Player{}, err
	}

	p := newComputer(t.clock.Now())
	t.players = append(t.players, p)
	t.emit(EventComputerAdded, p)
	t.touch()
	err := t.autoStartIfPossible()
	return *p, err
}

func (t *Table) MakePublic(actor uuid.UUID) error {
	return t.changeVisibility(actor, VisibilityPublic)
}

func (t *Table) MakePrivate(actor uuid.UUID) error {
	return t.changeVisibility(actor, VisibilityPrivate)
}

func (t *Table) changeVisibility(actor uuid.UUID, v Visibility) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	if err := t.checkOwner(actor); err != nil {
		return err
	}
	if t.visibility == v {
		return nil
	}
	t.visibility = v
	t.emit(EventVisibilityChanged, t.ownerPlayer())
	t.touch()
	return nil
}

// ChangeOptions replaces the game options before the game starts.
func (t *Table) ChangeOptions(actor uuid.UUID, opts game.Options) error {
	if err := t.checkNew(); err != nil {
		return err
	}
	if err := t.checkOwner(actor); err != nil {
		return err
	}
	t.options = opts.Clone()
	t.emit(EventOptionsChanged, t.ownerPlayer())
	t.touch()
	return nil
}

func (t *Table) autoStartIfPossible() error {
	if !t.autoStart || t.status != StatusNew {
		return nil
	}
	accepted := 0
	for _, p := range t.players {
		switch p.Status {
		case PlayerAccepted:
			accepted++
		case PlayerInvited:
			return nil
		}
	}
	if accepted < t.game.MinPlayers {
		return nil
	}
	return t.start()
}
