package rating

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type key struct {
	account uuid.UUID
	game    string
}

// Memory keeps ratings in process memory.
type Memory struct {
	mu      sync.Mutex
	ratings map[key]Rating
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{ratings: make(map[key]Rating)}
}

func (m *Memory) Find(_ context.Context, game string, accounts []uuid.UUID) (map[uuid.UUID]Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]Rating, len(accounts))
	for _, a := range accounts {
		if r, ok := m.ratings[key{a, game}]; ok {
			out[a] = r
		}
	}
	return out, nil
}

func (m *Memory) Save(_ context.Context, ratings []Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range ratings {
		m.ratings[key{r.AccountID, r.Game}] = r
	}
	return nil
}
