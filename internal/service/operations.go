package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/table"
)

func (s *TableService) Invite(ctx context.Context, id, actor, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "invite", func(t *table.Table) error { return t.Invite(actor, account) })
}

// Join seats account at a public table. Joining counts against the
// account's active table limit.
func (s *TableService) Join(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	if err := s.checkActiveLimit(ctx, account); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "join", func(t *table.Table) error { return t.Join(account) })
}

func (s *TableService) Accept(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "accept", func(t *table.Table) error { return t.Accept(account) })
}

func (s *TableService) Reject(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "reject", func(t *table.Table) error { return t.Reject(account) })
}

func (s *TableService) Kick(ctx context.Context, id, actor, playerID uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "kick", func(t *table.Table) error { return t.Kick(actor, playerID) })
}

// AddComputer seats a computer player and returns it.
func (s *TableService) AddComputer(ctx context.Context, id, actor uuid.UUID) (*table.Table, table.Player, error) {
	var p table.Player
	t, err := s.mutate(ctx, id, "add-computer", func(t *table.Table) error {
		var err error
		p, err = t.AddComputer(actor)
		return err
	})
	return t, p, err
}

func (s *TableService) MakePublic(ctx context.Context, id, actor uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "make-public", func(t *table.Table) error { return t.MakePublic(actor) })
}

func (s *TableService) MakePrivate(ctx context.Context, id, actor uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "make-private", func(t *table.Table) error { return t.MakePrivate(actor) })
}

func (s *TableService) ChangeOptions(ctx context.Context, id, actor uuid.UUID, opts game.Options) (*table.Table, error) {
	return s.mutate(ctx, id, "change-options", func(t *table.Table) error { return t.ChangeOptions(actor, opts) })
}

func (s *TableService) Start(ctx context.Context, id, actor uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "start", func(t *table.Table) error { return t.Start(actor) })
}

func (s *TableService) Perform(ctx context.Context, id, account uuid.UUID, a game.Action) (*table.Table, error) {
	return s.mutate(ctx, id, "perform", func(t *table.Table) error { return t.Perform(account, a) })
}

func (s *TableService) Skip(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "skip", func(t *table.Table) error { return t.Skip(account) })
}

func (s *TableService) EndTurn(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "end-turn", func(t *table.Table) error { return t.EndTurn(account) })
}

func (s *TableService) Undo(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "undo", func(t *table.Table) error { return t.Undo(account) })
}

func (s *TableService) Leave(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "leave", func(t *table.Table) error { return t.Leave(account) })
}

func (s *TableService) ProposeToLeave(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "propose-to-leave", func(t *table.Table) error { return t.ProposeToLeave(account) })
}

func (s *TableService) AgreeToLeave(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "agree-to-leave", func(t *table.Table) error { return t.AgreeToLeave(account) })
}

func (s *TableService) Abandon(ctx context.Context, id, account uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "abandon", func(t *table.Table) error { return t.Abandon(account) })
}

func (s *TableService) ForceEndTurn(ctx context.Context, id, actor, playerID uuid.UUID) (*table.Table, error) {
	return s.mutate(ctx, id, "force-end-turn", func(t *table.Table) error { return t.ForceEndTurn(actor, playerID) })
}
