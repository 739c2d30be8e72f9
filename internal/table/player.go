package table

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
)

// PlayerStatus is a player's standing at a table.
type PlayerStatus string

const (
	PlayerInvited         PlayerStatus = "INVITED"
	PlayerAccepted        PlayerStatus = "ACCEPTED"
	PlayerRejected        PlayerStatus = "REJECTED"
	PlayerLeft            PlayerStatus = "LEFT"
	PlayerProposedToLeave PlayerStatus = "PROPOSED_TO_LEAVE"
	PlayerAgreedToLeave   PlayerStatus = "AGREED_TO_LEAVE"
)

// Player is one seat at a table, held by an account or by the computer.
type Player struct {
	ID uuid.UUID `json:"id"`
	// AccountID is uuid.Nil for computer players.
	AccountID     uuid.UUID    `json:"accountId"`
	Computer      bool         `json:"computer"`
	Status        PlayerStatus `json:"status"`
	Color         string       `json:"color,omitempty"`
	Turn          bool         `json:"turn"`
	TurnLimit     *time.Time   `json:"turnLimit,omitempty"`
	ForceEndTurns int          `json:"forceEndTurns,omitempty"`
	Score         *int         `json:"score,omitempty"`
	Winner        *bool        `json:"winner,omitempty"`
	Created       time.Time    `json:"created"`
	Updated       time.Time    `json:"updated"`
}

func newPlayer(account uuid.UUID, status PlayerStatus, now time.Time) *Player {
	return &Player{
		ID:        uuid.New(),
		AccountID: account,
		Status:    status,
		Created:   now,
		Updated:   now,
	}
}

func newComputer(now time.Time) *Player {
	p := newPlayer(uuid.Nil, PlayerAccepted, now)
	p.Computer = true
	return p
}

// IsPlaying reports whether the player still takes part in the game.
func (p *Player) IsPlaying() bool {
	switch p.Status {
	case PlayerAccepted, PlayerProposedToLeave, PlayerAgreedToLeave:
		return true
	}
	return false
}

func (p *Player) HasAgreedToLeave() bool {
	return p.Status == PlayerProposedToLeave || p.Status == PlayerAgreedToLeave
}

// IsAfterTurnLimit reports whether the player's turn deadline has passed.
func (p *Player) IsAfterTurnLimit(now time.Time) bool {
	return p.TurnLimit != nil && !p.TurnLimit.After(now)
}

func (p *Player) accept(now time.Time) error {
	if p.Status != PlayerInvited {
		return apperrors.New(apperrors.CodeAlreadyResponded, "invitation already answered")
	}
	p.Status = PlayerAccepted
	p.Updated = now
	return nil
}

func (p *Player) reject(now time.Time) error {
	if p.Status != PlayerInvited {
		return apperrors.New(apperrors.CodeAlreadyResponded, "invitation already answered")
	}
	p.Status = PlayerRejected
	p.Updated = now
	return nil
}

func (p *Player) leave(now time.Time) error {
	if p.Status == PlayerLeft {
		return apperrors.New(apperrors.CodeAlreadyLeft, "player already left")
	}
	if !p.IsPlaying() {
		return apperrors.New(apperrors.CodeNotAccepted, "player has not accepted")
	}
	p.Status = PlayerLeft
	p.Updated = now
	return nil
}

func (p *Player) proposeToLeave(now time.Time) error {
	if p.Status != PlayerAccepted {
		return apperrors.New(apperrors.CodeNotAccepted, "player is not an accepted player")
	}
	p.Status = PlayerProposedToLeave
	p.Updated = now
	return nil
}

func (p *Player) agreeToLeave(now time.Time) error {
	if p.Status != PlayerAccepted {
		return apperrors.New(apperrors.CodeNotAccepted, "player is not an accepted player")
	}
	p.Status = PlayerAgreedToLeave
	p.Updated = now
	return nil
}

func (p *Player) beginTurn(limit time.Time) {
	p.Turn = true
	p.TurnLimit = &limit
}

func (p *Player) endTurn() {
	p.Turn = false
	p.TurnLimit = nil
}

func (p *Player) forceEndTurn(now time.Time) error {
	if !p.IsAfterTurnLimit(now) {
		return apperrors.New(apperrors.CodeCannotForceEndTurn, "turn limit has not passed")
	}
	p.ForceEndTurns++
	p.Updated = now
	return nil
}

func (p *Player) assignScore(score int, winner bool) {
	p.Score = &score
	p.Winner = &winner
}
