package game

import (
	"fmt"
	"sort"
	"sync"
)

// Game describes one playable game: its roster limits, its color palette and
// the engine that implements its rules.
type Game struct {
	ID         string
	MinPlayers int
	MaxPlayers int
	Colors     []string
	// Automa is true when the engine can play computer seats.
	Automa bool
	Engine Engine
}

func (g *Game) validate() error {
	switch {
	case g.ID == "":
		return fmt.Errorf("game id is required")
	case g.Engine == nil:
		return fmt.Errorf("game %s: engine is required", g.ID)
	case g.MinPlayers < 1 || g.MaxPlayers < g.MinPlayers:
		return fmt.Errorf("game %s: invalid player limits %d..%d", g.ID, g.MinPlayers, g.MaxPlayers)
	case len(g.Colors) < g.MaxPlayers:
		return fmt.Errorf("game %s: %d colors for %d players", g.ID, len(g.Colors), g.MaxPlayers)
	}
	return nil
}

// Registry holds the games a server can host.
type Registry struct {
	mu    sync.Mutex
	games map[string]*Game
}

func NewRegistry(games ...*Game) (*Registry, error) {
	r := &Registry{
		games: make(map[string]*Game),
	}
	for _, g := range games {
		if err := r.Register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(g *Game) error {
	if err := g.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.games[g.ID]; exists {
		return fmt.Errorf("game %s already registered", g.ID)
	}
	r.games[g.ID] = g
	return nil
}

func (r *Registry) Get(id string) (*Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, exists := r.games[id]
	return g, exists
}

// IDs returns the registered game ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
