package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

const dietColumns = "horse_id, feed_id, am_amount, pm_amount, created_at, updated_at"

// DietRepo implements domain.DietRepository on PostgreSQL.
type DietRepo struct {
	db *DB
}

func NewDietRepo(db *DB) *DietRepo {
	return &DietRepo{db: db}
}

func scanDietEntry(row pgx.Row) (domain.DietEntry, error) {
	var d domain.DietEntry
	err := row.Scan(&d.HorseID, &d.FeedID, &d.AMAmount, &d.PMAmount, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *DietRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.DietEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT d.horse_id, d.feed_id, d.am_amount, d.pm_amount, d.created_at, d.updated_at
		FROM diet_entries d
		JOIN horses h ON h.id = d.horse_id
		WHERE h.board_id = $1
		ORDER BY d.horse_id, d.feed_id`,
		boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DietEntry
	for rows.Next() {
		entry, err := scanDietEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpsertAmount merges one amount field into the (horse, feed) entry inside
// a transaction. The entry is created on the first non-nil write and
// deleted once both fields are nil, so the table never holds empty rows.
func (r *DietRepo) UpsertAmount(ctx context.Context, horseID, feedID uuid.UUID, field domain.DietField, value *float64) (domain.DietEntry, bool, error) {
	var column string
	switch field {
	case domain.DietFieldAM:
		column = "am_amount"
	case domain.DietFieldPM:
		column = "pm_amount"
	default:
		return domain.DietEntry{}, false, fmt.Errorf("unknown diet field %q", field)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return domain.DietEntry{}, false, fmt.Errorf("begin diet upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	// column is validated above; it never carries user input.
	query := fmt.Sprintf(`
		INSERT INTO diet_entries (horse_id, feed_id, %[1]s) VALUES ($1, $2, $3)
		ON CONFLICT (horse_id, feed_id)
		DO UPDATE SET %[1]s = $3, updated_at = now()
		RETURNING `+dietColumns, column)

	entry, err := scanDietEntry(tx.QueryRow(ctx, query, horseID, feedID, value))
	if err != nil {
		return domain.DietEntry{}, false, fmt.Errorf("upsert diet entry: %w", err)
	}

	if entry.Empty() {
		if _, err := tx.Exec(ctx,
			`DELETE FROM diet_entries WHERE horse_id = $1 AND feed_id = $2`,
			horseID, feedID); err != nil {
			return domain.DietEntry{}, false, fmt.Errorf("remove empty diet entry: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return domain.DietEntry{}, false, err
		}
		return entry, true, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.DietEntry{}, false, err
	}
	return entry, false, nil
}

// UsageCounts returns, per feed of the board in insertion order, the number
// of distinct unarchived horses with at least one non-nil non-zero amount.
func (r *DietRepo) UsageCounts(ctx context.Context, boardID uuid.UUID) ([]domain.FeedUsage, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM boards WHERE id = $1)`, boardID).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBoardNotFound
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT f.id,
		       COUNT(DISTINCT d.horse_id) FILTER (
		           WHERE (COALESCE(d.am_amount, 0) <> 0 OR COALESCE(d.pm_amount, 0) <> 0)
		             AND NOT h.archived
		       ) AS active_horses
		FROM feeds f
		LEFT JOIN diet_entries d ON d.feed_id = f.id
		LEFT JOIN horses h ON h.id = d.horse_id
		WHERE f.board_id = $1
		GROUP BY f.id, f.created_at
		ORDER BY f.created_at, f.id`,
		boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []domain.FeedUsage
	for rows.Next() {
		u := domain.FeedUsage{Position: len(usage)}
		if err := rows.Scan(&u.FeedID, &u.ActiveHorses); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
