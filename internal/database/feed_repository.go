package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

const feedColumns = "id, board_id, name, unit, rank, stock_level, stock_warn_at, created_at, updated_at"

// FeedRepo implements domain.FeedRepository on PostgreSQL.
type FeedRepo struct {
	db *DB
}

func NewFeedRepo(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

func scanFeed(row pgx.Row) (domain.Feed, error) {
	var f domain.Feed
	err := row.Scan(&f.ID, &f.BoardID, &f.Name, &f.Unit, &f.Rank,
		&f.StockLevel, &f.StockWarnAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Feed{}, domain.ErrFeedNotFound
	}
	return f, err
}

func (r *FeedRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.Feed, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+feedColumns+` FROM feeds
		WHERE board_id = $1
		ORDER BY CASE WHEN rank > 0 THEN rank ELSE 2147483647 END, created_at, id`,
		boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeeds(rows)
}

func collectFeeds(rows pgx.Rows) ([]domain.Feed, error) {
	var feeds []domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

func (r *FeedRepo) Create(ctx context.Context, boardID uuid.UUID, name, unit string) (domain.Feed, error) {
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO feeds (board_id, name, unit) VALUES ($1, $2, $3) RETURNING `+feedColumns,
		boardID, name, unit)
	return scanFeed(row)
}

func (r *FeedRepo) Update(ctx context.Context, id uuid.UUID, patch domain.FeedPatch) (domain.Feed, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE feeds SET
			name          = COALESCE($2, name),
			unit          = COALESCE($3, unit),
			stock_level   = CASE WHEN $5 THEN NULL ELSE COALESCE($4, stock_level) END,
			stock_warn_at = CASE WHEN $7 THEN NULL ELSE COALESCE($6, stock_warn_at) END,
			updated_at    = now()
		WHERE id = $1
		RETURNING `+feedColumns,
		id, patch.Name, patch.Unit, patch.StockLevel, patch.ClearStock, patch.StockWarnAt, patch.ClearStockWarn)
	return scanFeed(row)
}

func (r *FeedRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Feed, error) {
	row := r.db.Pool.QueryRow(ctx,
		`DELETE FROM feeds WHERE id = $1 RETURNING `+feedColumns, id)
	return scanFeed(row)
}

// UpdateRanks persists the recomputed order in one transaction: index 0
// becomes rank 1. Feeds not listed keep their previous rank.
func (r *FeedRepo) UpdateRanks(ctx context.Context, boardID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rank update: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `
			UPDATE feeds SET rank = $1, updated_at = now()
			WHERE id = $2 AND board_id = $3`,
			i+1, id, boardID); err != nil {
			return fmt.Errorf("update rank of feed %s: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}
