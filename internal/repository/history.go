package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/tastebuds/room-server-go/internal/model"
)

type HistoryRepository interface {
	// Record inserts one history entry. Duplicate writes for the same
	// (participant, room, winner) key are no-ops, so retries are safe.
	Record(ctx context.Context, entry model.HistoryEntry) error
	ListByParticipant(ctx context.Context, participantID string) ([]model.HistoryEntry, error)
}

type historyDB interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type historyRepo struct {
	db historyDB
}

func NewHistoryRepository(db *sqlx.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Record(ctx context.Context, entry model.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history (participant_id, room_id, winner_id, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id, room_id, winner_id) DO NOTHING
	`, entry.ParticipantID, entry.RoomID, entry.WinnerID, entry.Name)
	return err
}

func (r *historyRepo) ListByParticipant(ctx context.Context, participantID string) ([]model.HistoryEntry, error) {
	entries := []model.HistoryEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM history
		WHERE participant_id = $1
		ORDER BY decided_at DESC
	`, participantID)
	return entries, err
}
