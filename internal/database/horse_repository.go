package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aornugent/horseboard-sub002/internal/domain"
)

const horseColumns = "id, board_id, name, note, note_expiry, archived, created_at, updated_at"

// HorseRepo implements domain.HorseRepository on PostgreSQL.
type HorseRepo struct {
	db *DB
}

func NewHorseRepo(db *DB) *HorseRepo {
	return &HorseRepo{db: db}
}

func scanHorse(row pgx.Row) (domain.Horse, error) {
	var h domain.Horse
	err := row.Scan(&h.ID, &h.BoardID, &h.Name, &h.Note, &h.NoteExpiry,
		&h.Archived, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Horse{}, domain.ErrHorseNotFound
	}
	return h, err
}

func (r *HorseRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]domain.Horse, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+horseColumns+` FROM horses WHERE board_id = $1 ORDER BY created_at, id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHorses(rows)
}

func collectHorses(rows pgx.Rows) ([]domain.Horse, error) {
	var horses []domain.Horse
	for rows.Next() {
		horse, err := scanHorse(rows)
		if err != nil {
			return nil, err
		}
		horses = append(horses, horse)
	}
	return horses, rows.Err()
}

func (r *HorseRepo) Create(ctx context.Context, boardID uuid.UUID, name string) (domain.Horse, error) {
	row := r.db.Pool.QueryRow(ctx,
		`INSERT INTO horses (board_id, name) VALUES ($1, $2) RETURNING `+horseColumns,
		boardID, name)
	return scanHorse(row)
}

func (r *HorseRepo) Update(ctx context.Context, id uuid.UUID, patch domain.HorsePatch) (domain.Horse, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE horses SET
			name        = COALESCE($2, name),
			note        = CASE WHEN $4 THEN NULL ELSE COALESCE($3, note) END,
			note_expiry = CASE WHEN $6 THEN NULL ELSE COALESCE($5, note_expiry) END,
			archived    = COALESCE($7, archived),
			updated_at  = now()
		WHERE id = $1
		RETURNING `+horseColumns,
		id, patch.Name, patch.Note, patch.ClearNote, patch.NoteExpiry, patch.ClearNoteExpiry, patch.Archived)
	return scanHorse(row)
}

func (r *HorseRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Horse, error) {
	row := r.db.Pool.QueryRow(ctx,
		`DELETE FROM horses WHERE id = $1 RETURNING `+horseColumns, id)
	return scanHorse(row)
}

func (r *HorseRepo) ListExpiredNotes(ctx context.Context, now time.Time) ([]domain.Horse, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+horseColumns+` FROM horses
		WHERE note IS NOT NULL AND note_expiry IS NOT NULL AND note_expiry < $1`,
		now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHorses(rows)
}

func (r *HorseRepo) ClearNote(ctx context.Context, id uuid.UUID) (domain.Horse, error) {
	row := r.db.Pool.QueryRow(ctx, `
		UPDATE horses SET note = NULL, note_expiry = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+horseColumns,
		id)
	return scanHorse(row)
}
