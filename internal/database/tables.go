// internal/database/tables.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tabletop/internal/game"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
)

// TableRepository persists tables in PostgreSQL.
type TableRepository struct {
	pool  *pgxpool.Pool
	games *game.Registry
}

var _ store.Tables = (*TableRepository)(nil)

func NewTableRepository(pool *pgxpool.Pool, games *game.Registry) *TableRepository {
	return &TableRepository{pool: pool, games: games}
}

var errTableNotFound = apperrors.New(apperrors.CodeNotFound, "table not found")

func (r *TableRepository) FindByID(ctx context.Context, id uuid.UUID) (*table.Table, error) {
	var (
		doc     []byte
		version int
	)
	err := r.pool.QueryRow(ctx, `SELECT record, version FROM tables WHERE id = $1`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select table %s: %w", id, err)
	}
	return r.restore(ctx, doc, version)
}

func (r *TableRepository) restore(ctx context.Context, doc []byte, version int) (*table.Table, error) {
	var rec table.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal table record: %w", err)
	}
	rec.Version = version

	g, ok := r.games.Get(rec.Game)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeGameNotFound, "game not registered",
			map[string]string{"game": rec.Game})
	}

	// lazy loads may run after the request that loaded the table is done
	loadCtx := context.WithoutCancel(ctx)
	id := rec.ID
	return table.Restore(rec, g, table.Loader{
		History: func(at time.Time) (*table.HistoricRecord, error) {
			return r.findHistory(loadCtx, id, at)
		},
		Log: func(since, before time.Time, limit int) ([]*table.LogEntry, error) {
			return r.FindLogEntries(loadCtx, id, since, before, limit)
		},
	}, nil)
}

func (r *TableRepository) findHistory(ctx context.Context, id uuid.UUID, at time.Time) (*table.HistoricRecord, error) {
	h := table.HistoricRecord{TableID: id}
	err := r.pool.QueryRow(ctx, `
		SELECT ts, previous, state, expires
		FROM table_history
		WHERE table_id = $1 AND ts = $2 AND expires > now()
	`, id, at).Scan(&h.Timestamp, &h.Previous, &h.State, &h.Expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select history of %s at %s: %w", id, at, err)
	}
	h.Timestamp = h.Timestamp.UTC()
	if h.Previous != nil {
		prev := h.Previous.UTC()
		h.Previous = &prev
	}
	return &h, nil
}

func (r *TableRepository) Add(ctx context.Context, t *table.Table) error {
	if t.Version() != 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "table was already added")
	}
	return r.save(ctx, t, func(tx pgx.Tx, rec table.Record, doc []byte) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO tables (id, game, status, created, expires, version, record)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, rec.Game, string(rec.Status), rec.Created, rec.Expires, rec.Version, doc)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("table %s already exists", rec.ID))
		}
		return nil
	})
}

func (r *TableRepository) Update(ctx context.Context, t *table.Table) error {
	return r.save(ctx, t, func(tx pgx.Tx, rec table.Record, doc []byte) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tables SET status = $2, expires = $3, version = $4, record = $5
			WHERE id = $1 AND version = $6
		`, rec.ID, string(rec.Status), rec.Expires, rec.Version, doc, t.Version())
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errTableNotFound
		}
		return apperrors.WithMetadata(apperrors.CodeConcurrentModification, "table was modified concurrently",
			map[string]string{"table": rec.ID.String()})
	})
}

// save writes the table row through write, then the roster index and the
// pending history and log entries, all in one transaction.
func (r *TableRepository) save(ctx context.Context, t *table.Table, write func(pgx.Tx, table.Record, []byte) error) error {
	rec, err := t.Record()
	if err != nil {
		return err
	}
	rec.Version = t.Version() + 1
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal table record: %w", err)
	}
	history := t.PendingHistoryRecords()
	entries := t.Log().Pending()

	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := write(tx, rec, doc); err != nil {
			return err
		}
		if err := writePlayers(ctx, tx, rec); err != nil {
			return fmt.Errorf("write players: %w", err)
		}
		if err := writeHistory(ctx, tx, rec.ID, history); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		if err := writeLog(ctx, tx, rec.ID, entries); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return fmt.Errorf("tx save table %s: %w", rec.ID, err)
	}
	t.MarkSaved(rec.Version)
	return nil
}

func writePlayers(ctx context.Context, tx pgx.Tx, rec table.Record) error {
	if _, err := tx.Exec(ctx, `DELETE FROM table_players WHERE table_id = $1`, rec.ID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, p := range rec.Players {
		if p.Computer {
			continue
		}
		batch.Queue(`INSERT INTO table_players (table_id, account_id, status) VALUES ($1, $2, $3)`,
			rec.ID, p.AccountID, string(p.Status))
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func writeHistory(ctx context.Context, tx pgx.Tx, id uuid.UUID, history []table.HistoricRecord) error {
	if len(history) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range history {
		batch.Queue(`
			INSERT INTO table_history (table_id, ts, previous, state, expires)
			VALUES ($1, $2, $3, $4, $5)
		`, id, h.Timestamp, h.Previous, []byte(h.State), h.Expires)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func writeLog(ctx context.Context, tx pgx.Tx, id uuid.UUID, entries []*table.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"table_log"},
		[]string{"table_id", "ts", "player_id", "account_id", "type", "parameters", "expires"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			params := e.Parameters
			if params == nil {
				params = []string{}
			}
			return []any{id, e.Timestamp, e.PlayerID, e.AccountID, string(e.Type), params, e.Expires}, nil
		}),
	)
	return err
}

func (r *TableRepository) FindActive(ctx context.Context, account uuid.UUID) ([]*table.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.record, t.version
		FROM tables t
		JOIN table_players p ON p.table_id = t.id
		WHERE p.account_id = $1
		  AND p.status NOT IN ('LEFT', 'REJECTED')
		  AND t.status IN ('NEW', 'STARTED')
		ORDER BY t.created DESC, t.id DESC
	`, account)
	if err != nil {
		return nil, fmt.Errorf("select active tables: %w", err)
	}
	return r.collect(ctx, rows)
}

func (r *TableRepository) FindByAccount(ctx context.Context, account uuid.UUID, q store.Query) (store.Page, error) {
	return r.page(ctx, q, "account="+account.String(),
		`JOIN table_players p ON p.table_id = t.id`,
		[]string{`p.account_id = @account`, `p.status NOT IN ('LEFT', 'REJECTED')`},
		pgx.NamedArgs{"account": account})
}

func (r *TableRepository) FindByGame(ctx context.Context, gameID string, status table.Status, q store.Query) (store.Page, error) {
	conds := []string{`t.game = @game`}
	args := pgx.NamedArgs{"game": gameID}
	if status != "" {
		conds = append(conds, `t.status = @status`)
		args["status"] = string(status)
	}
	return r.page(ctx, q, fmt.Sprintf("game=%s&status=%s", gameID, status), "", conds, args)
}

func (r *TableRepository) page(ctx context.Context, q store.Query, filter, join string, conds []string, args pgx.NamedArgs) (store.Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultPageSize
	}
	if limit > store.MaxPageSize {
		limit = store.MaxPageSize
	}
	if !q.From.IsZero() {
		conds = append(conds, `t.created >= @from`)
		args["from"] = q.From
	}
	if !q.To.IsZero() {
		conds = append(conds, `t.created < @to`)
		args["to"] = q.To
	}
	if q.Cursor != "" {
		c, err := store.DecodeCursor(q.Cursor, filter)
		if err != nil {
			return store.Page{}, err
		}
		conds = append(conds, `(t.created, t.id) < (@after_created, @after_id)`)
		args["after_created"] = c.After.Created
		args["after_id"] = c.After.ID
	}
	args["limit"] = limit + 1

	sql := `SELECT t.record, t.version FROM tables t ` + join +
		` WHERE ` + strings.Join(conds, ` AND `) +
		` ORDER BY t.created DESC, t.id DESC LIMIT @limit`
	rows, err := r.pool.Query(ctx, sql, args)
	if err != nil {
		return store.Page{}, fmt.Errorf("select tables: %w", err)
	}
	tables, err := r.collect(ctx, rows)
	if err != nil {
		return store.Page{}, err
	}

	var page store.Page
	if len(tables) > limit {
		tables = tables[:limit]
		last := tables[len(tables)-1]
		page.Next, err = store.EncodeCursor(store.Cursor{
			After:      store.Position{Created: last.Created(), ID: last.ID()},
			FilterHash: store.HashFilter(filter),
		})
		if err != nil {
			return store.Page{}, err
		}
	}
	page.Tables = tables
	return page, nil
}

type recordRow struct {
	doc     []byte
	version int
}

func (r *TableRepository) collect(ctx context.Context, rows pgx.Rows) ([]*table.Table, error) {
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (recordRow, error) {
		var rr recordRow
		err := row.Scan(&rr.doc, &rr.version)
		return rr, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tables: %w", err)
	}
	out := make([]*table.Table, 0, len(recs))
	for _, rr := range recs {
		t, err := r.restore(ctx, rr.doc, rr.version)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TableRepository) FindLogEntries(ctx context.Context, tableID uuid.UUID, since, before time.Time, limit int) ([]*table.LogEntry, error) {
	args := pgx.NamedArgs{"table": tableID}
	conds := []string{`table_id = @table`}
	if !since.IsZero() {
		conds = append(conds, `ts > @since`)
		args["since"] = since
	}
	if !before.IsZero() {
		conds = append(conds, `ts < @before`)
		args["before"] = before
	}
	sql := `SELECT player_id, account_id, ts, type, parameters, expires FROM table_log WHERE ` +
		strings.Join(conds, ` AND `) + ` ORDER BY ts DESC`
	if limit > 0 {
		sql += ` LIMIT @limit`
		args["limit"] = limit
	}

	rows, err := r.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("select log of %s: %w", tableID, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*table.LogEntry, error) {
		var (
			e   table.LogEntry
			typ string
		)
		if err := row.Scan(&e.PlayerID, &e.AccountID, &e.Timestamp, &typ, &e.Parameters, &e.Expires); err != nil {
			return nil, err
		}
		e.Type = table.LogType(typ)
		e.Timestamp = e.Timestamp.UTC()
		e.Expires = e.Expires.UTC()
		if len(e.Parameters) == 0 {
			e.Parameters = nil
		}
		return &e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan log of %s: %w", tableID, err)
	}
	return entries, nil
}
