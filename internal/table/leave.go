package table

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// Leave takes the player seated for account out of the table. When the owner
// leaves, ownership passes to another playing human, or the table is
// abandoned if there is none. A started game that drops below the game's
// minimum is abandoned as well.
func (t *Table) Leave(account uuid.UUID) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return err
	}
	if err := p.leave(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(p, LogLeft)
	t.emit(EventLeft, p)
	t.touch()

	if t.status == StatusNew {
		t.removePlayer(p)
	}

	if account == t.ownerID {
		others := t.otherHumansPlaying(account)
		if len(others) == 0 {
			t.abandon()
			return nil
		}
		t.changeOwner(others[0])
	}

	if t.status != StatusStarted {
		return nil
	}
	if t.playingCount() < t.game.MinPlayers {
		t.abandon()
		return nil
	}
	return t.runStateChange(func(s game.State, rng *rand.Rand) error {
		return t.game.Engine.Leave(s, p.ID.String(), rng)
	})
}

// ProposeToLeave starts the consent protocol for ending a started game early.
func (t *Table) ProposeToLeave(account uuid.UUID) error {
	if err := t.checkStarted(); err != nil {
		return err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return err
	}
	if err := p.proposeToLeave(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(p, LogProposedToLeave)
	t.emit(EventProposedToLeave, p)
	t.touch()
	t.abandonIfAllAgreed(p)
	return nil
}

func (t *Table) AgreeToLeave(account uuid.UUID) error {
	if err := t.checkStarted(); err != nil {
		return err
	}
	p, err := t.mustPlayer(account)
	if err != nil {
		return err
	}
	if err := p.agreeToLeave(t.clock.Now()); err != nil {
		return err
	}
	t.addLog(p, LogAgreedToLeave)
	t.emit(EventAgreedToLeave, p)
	t.touch()
	t.abandonIfAllAgreed(p)
	return nil
}

func (t *Table) abandonIfAllAgreed(p *Player) {
	for _, o := range t.otherHumansPlaying(p.AccountID) {
		if !o.HasAgreedToLeave() {
			return
		}
	}
	t.abandon()
}

// Abandon ends the table without a result. The owner may abandon a started
// game only while at most one other human is still playing without having
// agreed to leave.
func (t *Table) Abandon(account uuid.UUID) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	if err := t.checkOwner(account); err != nil {
		return err
	}
	holdouts := 0
	for _, o := range t.otherHumansPlaying(account) {
		if !o.HasAgreedToLeave() {
			holdouts++
		}
	}
	if t.status == StatusStarted && holdouts > 1 {
		return apperrors.New(apperrors.CodeCannotAbandon, "other players are still playing")
	}
	t.abandon()
	return nil
}

func (t *Table) abandon() {
	t.status = StatusAbandoned
	for _, p := range t.players {
		if p.Turn {
			p.endTurn()
		}
	}
	t.touch()
	t.emit(EventAbandoned, t.ownerPlayer())
}

func (t *Table) changeOwner(p *Player) {
	t.ownerID = p.AccountID
	t.emit(EventOwnerChanged, p)
}
