package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tabletop/internal/rating"
)

// RatingRepository persists ratings in PostgreSQL. Every change is also
// appended to rating_changes.
type RatingRepository struct {
	pool *pgxpool.Pool
}

var _ rating.Store = (*RatingRepository)(nil)

func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

func (r *RatingRepository) Find(ctx context.Context, game string, accounts []uuid.UUID) (map[uuid.UUID]rating.Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account_id, game, table_id, rating, deviation, volatility, updated
		FROM ratings
		WHERE game = $1 AND account_id = ANY($2)
	`, game, accounts)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rating.Rating, error) {
		var rt rating.Rating
		err := row.Scan(&rt.AccountID, &rt.Game, &rt.TableID, &rt.Rating, &rt.Deviation, &rt.Volatility, &rt.Updated)
		rt.Updated = rt.Updated.UTC()
		return rt, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ratings: %w", err)
	}
	out := make(map[uuid.UUID]rating.Rating, len(found))
	for _, rt := range found {
		out[rt.AccountID] = rt
	}
	return out, nil
}

func (r *RatingRepository) Save(ctx context.Context, ratings []rating.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rt := range ratings {
			batch.Queue(`
				INSERT INTO rating_changes (account_id, game, table_id, old_rating, new_rating, updated)
				SELECT $1, $2, $3, COALESCE((SELECT rating FROM ratings WHERE account_id = $1 AND game = $2), $6), $4, $5
			`, rt.AccountID, rt.Game, rt.TableID, rt.Rating, rt.Updated, int(rating.DefaultMu))
			batch.Queue(`
				INSERT INTO ratings (account_id, game, table_id, rating, deviation, volatility, updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (account_id, game) DO UPDATE SET
					table_id = EXCLUDED.table_id,
					rating = EXCLUDED.rating,
					deviation = EXCLUDED.deviation,
					volatility = EXCLUDED.volatility,
					updated = EXCLUDED.updated
			`, rt.AccountID, rt.Game, rt.TableID, rt.Rating, rt.Deviation, rt.Volatility, rt.Updated)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to commit ratings: %w", err)
	}
	return nil
}
