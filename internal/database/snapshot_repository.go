package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

// SnapshotRepo reads complete board state in one repeatable-read transaction
// so full events and connect-time baselines are internally consistent.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Snapshot(ctx context.Context, boardID uuid.UUID) (domain.BoardSnapshot, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return domain.BoardSnapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	var snap domain.BoardSnapshot

	snap.Board, err = scanBoard(tx.QueryRow(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id = $1`, boardID))
	if err != nil {
		return domain.BoardSnapshot{}, err
	}

	horseRows, err := tx.Query(ctx,
		`SELECT `+horseColumns+` FROM horses WHERE board_id = $1 ORDER BY created_at, id`, boardID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	snap.Horses, err = collectHorses(horseRows)
	horseRows.Close()
	if err != nil {
		return domain.BoardSnapshot{}, err
	}

	feedRows, err := tx.Query(ctx, `
		SELECT `+feedColumns+` FROM feeds
		WHERE board_id = $1
		ORDER BY CASE WHEN rank > 0 THEN rank ELSE 2147483647 END, created_at, id`,
		boardID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	snap.Feeds, err = collectFeeds(feedRows)
	feedRows.Close()
	if err != nil {
		return domain.BoardSnapshot{}, err
	}

	dietRows, err := tx.Query(ctx, `
		SELECT d.horse_id, d.feed_id, d.am_amount, d.pm_amount, d.created_at, d.updated_at
		FROM diet_entries d
		JOIN horses h ON h.id = d.horse_id
		WHERE h.board_id = $1
		ORDER BY d.horse_id, d.feed_id`,
		boardID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	for dietRows.Next() {
		entry, err := scanDietEntry(dietRows)
		if err != nil {
			dietRows.Close()
			return domain.BoardSnapshot{}, err
		}
		snap.Diet = append(snap.Diet, entry)
	}
	if err := dietRows.Err(); err != nil {
		dietRows.Close()
		return domain.BoardSnapshot{}, err
	}
	dietRows.Close()

	if err := tx.Commit(ctx); err != nil {
		return domain.BoardSnapshot{}, err
	}
	return snap, nil
}
