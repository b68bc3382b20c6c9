package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

const boardColumns = "id, pair_code, time_mode, override_until, timezone, zoom_level, current_page, created_at, updated_at"

// BoardRepo implements domain.BoardRepository on PostgreSQL.
type BoardRepo struct {
	db *DB
}

func NewBoardRepo(db *DB) *BoardRepo {
	return &BoardRepo{db: db}
}

func scanBoard(row pgx.Row) (domain.Board, error) {
	var b domain.Board
	var mode string
	err := row.Scan(&b.ID, &b.PairCode, &mode, &b.OverrideUntil, &b.Timezone,
		&b.ZoomLevel, &b.CurrentPage, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Board{}, domain.ErrBoardNotFound
	}
	if err != nil {
		return domain.Board{}, err
	}
	b.TimeMode = domain.ParseTimeMode(mode)
	return b, nil
}

// pairCodeAlphabet avoids ambiguous characters so codes survive being read
// off a screen and typed on a phone.
const pairCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newPairCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate pair code: %w", err)
	}
	for i, b := range buf {
		buf[i] = pairCodeAlphabet[int(b)%len(pairCodeAlphabet)]
	}
	return string(buf), nil
}

func (r *BoardRepo) Create(ctx context.Context, timezone string) (domain.Board, error) {
	code, err := newPairCode()
	if err != nil {
		return domain.Board{}, err
	}
	if timezone == "" {
		timezone = "UTC"
	}
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO boards (pair_code, timezone) VALUES ($1, $2) RETURNING `+boardColumns,
		code, timezone)
	return scanBoard(row)
}

func (r *BoardRepo) Get(ctx context.Context, id uuid.UUID) (domain.Board, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id)
	return scanBoard(row)
}

func (r *BoardRepo) GetByPairCode(ctx context.Context, code string) (domain.Board, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE pair_code = $1`, code)
	board, err := scanBoard(row)
	if errors.Is(err, domain.ErrBoardNotFound) {
		return domain.Board{}, domain.ErrInvalidPairCode
	}
	return board, err
}

func (r *BoardRepo) Update(ctx context.Context, id uuid.UUID, patch domain.BoardPatch) (domain.Board, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE boards SET
			timezone     = COALESCE($2, timezone),
			zoom_level   = COALESCE($3, zoom_level),
			current_page = COALESCE($4, current_page),
			updated_at   = now()
		WHERE id = $1
		RETURNING `+boardColumns,
		id, patch.Timezone, patch.ZoomLevel, patch.CurrentPage)
	return scanBoard(row)
}

func (r *BoardRepo) SetTimeMode(ctx context.Context, id uuid.UUID, mode domain.TimeMode, until *time.Time) (domain.Board, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE boards SET time_mode = $2, override_until = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+boardColumns,
		id, string(mode), until)
	return scanBoard(row)
}

func (r *BoardRepo) ListExpiredOverrides(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id FROM boards
		WHERE time_mode <> 'AUTO' AND override_until IS NOT NULL AND override_until < $1`,
		now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BoardRepo) ResetOverride(ctx context.Context, id uuid.UUID) (domain.Board, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE boards SET time_mode = 'AUTO', override_until = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+boardColumns,
		id)
	return scanBoard(row)
}
