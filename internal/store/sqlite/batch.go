package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/store"
)

type batchOp struct {
	name string
	stmt sq.Sqlizer
}

// sqliteBatch queues statements and runs them in one transaction on Commit.
type sqliteBatch struct {
	store     *Store
	userID    string
	ops       []batchOp
	committed bool
}

// NewBatch starts a batch of writes for userID.
func (s *Store) NewBatch(userID string) store.Batch {
	return &sqliteBatch{store: s, userID: userID}
}

func (b *sqliteBatch) add(name string, stmt sq.Sqlizer) {
	b.ops = append(b.ops, batchOp{name: name, stmt: stmt})
}

// PutWine writes the wine at its id, replacing any existing row.
func (b *sqliteBatch) PutWine(w *domain.Wine) {
	b.add("put wine "+w.ID, wineInsert("wines", b.userID, w).Options("OR REPLACE"))
}

func (b *sqliteBatch) DeleteWine(wineID string) {
	b.add("delete wine "+wineID, builder.Delete("wines").Where(sq.Eq{"user_id": b.userID, "id": wineID}))
}

// PutExperienced writes the experienced record at its id, replacing any existing row.
func (b *sqliteBatch) PutExperienced(e *domain.ExperiencedWine) {
	b.add("put experienced "+e.ID, experiencedInsert(b.userID, e).Options("OR REPLACE"))
}

func (b *sqliteBatch) DeleteExperienced(wineID string) {
	b.add("delete experienced "+wineID,
		builder.Delete("experienced_wines").Where(sq.Eq{"user_id": b.userID, "id": wineID}))
}

func (b *sqliteBatch) MoveWine(wineID, cellarID string) {
	b.add("move wine "+wineID, builder.Update("wines").
		Set("cellar_id", nullString(cellarID)).
		Where(sq.Eq{"user_id": b.userID, "id": wineID}))
}

func (b *sqliteBatch) MoveExperienced(wineID, cellarID string) {
	b.add("move experienced "+wineID, builder.Update("experienced_wines").
		Set("cellar_id", nullString(cellarID)).
		Where(sq.Eq{"user_id": b.userID, "id": wineID}))
}

func (b *sqliteBatch) DeleteCellar(cellarID string) {
	b.add("delete cellar "+cellarID,
		builder.Delete("cellars").Where(sq.Eq{"user_id": b.userID, "id": cellarID}))
}

func (b *sqliteBatch) Len() int { return len(b.ops) }

// Commit runs every queued statement in one transaction. Any failure rolls
// the whole batch back. A batch can be committed once.
func (b *sqliteBatch) Commit(ctx context.Context) error {
	if b.committed {
		return store.ErrBatchCommitted
	}
	b.committed = true
	if len(b.ops) == 0 {
		return nil
	}

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, op := range b.ops {
		if _, err := execBuilder(ctx, tx, op.stmt); err != nil {
			return fmt.Errorf("batch %s: %w", op.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	b.store.logger.Debug("batch committed", "user_id", b.userID, "ops", len(b.ops))
	return nil
}

// BackfillCellarID sets cellar_id = 'default' on every untagged record, in
// one transaction, and reports the per-user counts.
func (s *Store) BackfillCellarID(ctx context.Context) ([]store.BackfillCount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin backfill: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	counts := make(map[string]*store.BackfillCount)
	var order []string

	for _, table := range []string{"wines", "experienced_wines"} {
		perUser, err := countUntagged(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		for userID, n := range perUser {
			c, ok := counts[userID]
			if !ok {
				c = &store.BackfillCount{UserID: userID}
				counts[userID] = c
				order = append(order, userID)
			}
			if table == "wines" {
				c.Wines = n
			} else {
				c.Experienced = n
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET cellar_id = ? WHERE cellar_id IS NULL OR cellar_id = ''`,
			domain.DefaultCellarID); err != nil {
			return nil, fmt.Errorf("backfill %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit backfill: %w", err)
	}

	out := make([]store.BackfillCount, 0, len(order))
	for _, userID := range order {
		out = append(out, *counts[userID])
	}
	return out, nil
}

func countUntagged(ctx context.Context, tx *sql.Tx, table string) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, COUNT(*) FROM `+table+` WHERE cellar_id IS NULL OR cellar_id = '' GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("count untagged %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			userID string
			n      int
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		out[userID] = n
	}
	return out, rows.Err()
}
