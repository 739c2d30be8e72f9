// Package rating keeps a Glicko-2 rating per account and game, adjusted every
// time a table of that game ends.
package rating

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Rating is an account's standing in one game.
type Rating struct {
	AccountID uuid.UUID `json:"accountId"`
	Game      string    `json:"game"`
	// TableID is the table that last changed the rating.
	TableID    *uuid.UUID `json:"tableId,omitempty"`
	Rating     int        `json:"rating"`
	Deviation  float64    `json:"deviation"`
	Volatility float64    `json:"volatility"`
	Updated    time.Time  `json:"updated"`
}

// Initial is the rating of an account that has not finished a game yet.
func Initial(account uuid.UUID, game string) Rating {
	return Rating{
		AccountID:  account,
		Game:       game,
		Rating:     int(DefaultMu),
		Deviation:  DefaultPhi,
		Volatility: DefaultSigma,
	}
}

func (r Rating) glicko() Glicko2Rating {
	return NewGlicko2Rating(float64(r.Rating), r.Deviation, r.Volatility)
}

// Result is one account's final score at an ended table.
type Result struct {
	AccountID uuid.UUID
	Score     int
}

// rankFractions maps each account to 1 for the best score down to 0 for the
// worst. Tied accounts share the fraction of their average rank.
func rankFractions(results []Result) map[uuid.UUID]float64 {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	frac := make(map[uuid.UUID]float64, len(sorted))
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Score == sorted[i].Score {
			j++
		}
		avgRank := float64(i+(j-1)) / 2
		fr := 1.0 - avgRank/float64(len(sorted)-1)
		for k := i; k < j; k++ {
			frac[sorted[k].AccountID] = fr
		}
		i = j
	}
	return frac
}

// Adjust rates every account of a finished table against the average of its
// opponents. Accounts missing from current start from Initial. Fewer than two
// results change nothing.
func Adjust(current map[uuid.UUID]Rating, game string, tableID uuid.UUID, at time.Time, results []Result) []Rating {
	if len(results) < 2 {
		return nil
	}
	before := make([]Rating, len(results))
	var total float64
	for i, res := range results {
		r, ok := current[res.AccountID]
		if !ok {
			r = Initial(res.AccountID, game)
		}
		before[i] = r
		total += float64(r.Rating)
	}

	frac := rankFractions(results)
	n := float64(len(results))
	out := make([]Rating, len(results))
	for i, r := range before {
		oppElo := (total - float64(r.Rating)) / (n - 1)
		opp := NewGlicko2Rating(oppElo, DefaultPhi, DefaultSigma)
		next := updateGlicko(r.glicko(), opp, frac[r.AccountID])

		id := tableID
		out[i] = Rating{
			AccountID:  r.AccountID,
			Game:       game,
			TableID:    &id,
			Rating:     int(math.Round(next.ToElo())),
			Deviation:  next.Deviation(),
			Volatility: next.Sigma,
			Updated:    at,
		}
	}
	return out
}

// Store persists ratings.
type Store interface {
	// Find returns the stored ratings of the given accounts. Accounts without
	// a rating are absent from the map.
	Find(ctx context.Context, game string, accounts []uuid.UUID) (map[uuid.UUID]Rating, error)
	Save(ctx context.Context, ratings []Rating) error
}

// Get returns the rating of one account, or its initial rating.
func Get(ctx context.Context, s Store, account uuid.UUID, game string) (Rating, error) {
	found, err := s.Find(ctx, game, []uuid.UUID{account})
	if err != nil {
		return Rating{}, err
	}
	if r, ok := found[account]; ok {
		return r, nil
	}
	return Initial(account, game), nil
}

// Record adjusts and saves the ratings of a finished table.
func Record(ctx context.Context, s Store, game string, tableID uuid.UUID, at time.Time, results []Result) ([]Rating, error) {
	if len(results) < 2 {
		return nil, nil
	}
	accounts := make([]uuid.UUID, len(results))
	for i, res := range results {
		accounts[i] = res.AccountID
	}
	current, err := s.Find(ctx, game, accounts)
	if err != nil {
		return nil, fmt.Errorf("find ratings: %w", err)
	}
	adjusted := Adjust(current, game, tableID, at, results)
	if err := s.Save(ctx, adjusted); err != nil {
		return nil, fmt.Errorf("save ratings: %w", err)
	}
	return adjusted, nil
}
