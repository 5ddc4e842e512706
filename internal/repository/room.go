package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tastebuds/room-server-go/internal/model"
)

// ErrDuplicateRoomID is returned by Insert when the generated room code is
// already taken. The caller retries with a fresh code.
var ErrDuplicateRoomID = errors.New("room id already exists")

// RoomRepository is the session store. Every mutation targets a single row
// so that concurrent writers on different leaves never clobber each other;
// AppendMatch and CommitWinner are the two monotone operations the design
// relies on instead of locks.
type RoomRepository interface {
	Insert(ctx context.Context, params model.CreateRoomParams) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	Snapshot(ctx context.Context, id string) (*model.RoomSnapshot, error)

	// LockRoom reads the room row FOR UPDATE. Inside a transaction this
	// serializes the caller against a concurrent winner commit, which
	// updates the same row.
	LockRoom(ctx context.Context, id string) (*model.Room, error)

	// AddParticipant inserts the participant into the roster. Returns false
	// without error when the participant is already a member.
	AddParticipant(ctx context.Context, roomID, participantID string) (bool, error)

	// RecordSwipe inserts a single (participant, candidate) decision row.
	// Returns false when a decision for that pair already exists; the stored
	// decision is never changed.
	RecordSwipe(ctx context.Context, roomID, participantID, candidateID string, decision model.Decision) (bool, error)

	// SwipesForCandidate returns participant -> decision for one candidate.
	SwipesForCandidate(ctx context.Context, roomID, candidateID string) (map[string]model.Decision, error)

	ListRoster(ctx context.Context, roomID string) ([]string, error)
	ListMatches(ctx context.Context, roomID string) ([]string, error)

	// AppendMatch adds the candidate to the match set. Idempotent: concurrent
	// duplicate appends converge on a single row.
	AppendMatch(ctx context.Context, roomID, candidateID string) error

	// CommitWinner sets the winner if and only if it is still unset.
	// Returns false when another caller already committed one.
	CommitWinner(ctx context.Context, roomID, candidateID string) (bool, error)

	// Touch bumps updated_at so the cleanup job sees the room as live.
	Touch(ctx context.Context, roomID string) error

	DeleteIdle(ctx context.Context, idleFor time.Duration) (int64, error)

	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) RoomRepository
}

type roomDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type roomRepo struct {
	db roomDB
}

func NewRoomRepository(db *sqlx.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) WithTx(tx *sqlx.Tx) RoomRepository {
	return &roomRepo{db: tx}
}

func (r *roomRepo) Insert(ctx context.Context, params model.CreateRoomParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, creator_id) VALUES ($1, $2)
	`, params.ID, params.CreatorID)
	if isUniqueViolation(err) {
		return ErrDuplicateRoomID
	}
	if err != nil {
		return err
	}

	for i, c := range params.Candidates {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO room_candidates (room_id, candidate_id, position, name, category, rating, photo_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, params.ID, c.ID, i, c.Name, c.Category, c.Rating, c.PhotoURL)
		if err != nil {
			return err
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, participant_id) VALUES ($1, $2)
	`, params.ID, params.CreatorID)
	return err
}

func (r *roomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		SELECT * FROM rooms WHERE id = $1
	`, id)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) LockRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		SELECT * FROM rooms WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) Snapshot(ctx context.Context, id string) (*model.RoomSnapshot, error) {
	room, err := r.FindByID(ctx, id)
	if err != nil || room == nil {
		return nil, err
	}

	var candidates []model.Candidate
	if err := r.db.SelectContext(ctx, &candidates, `
		SELECT candidate_id, name, category, rating, photo_url
		FROM room_candidates WHERE room_id = $1 ORDER BY position
	`, id); err != nil {
		return nil, err
	}

	var roster []string
	if err := r.db.SelectContext(ctx, &roster, `
		SELECT participant_id FROM room_participants
		WHERE room_id = $1 ORDER BY joined_at, participant_id
	`, id); err != nil {
		return nil, err
	}

	var swipes []model.Swipe
	if err := r.db.SelectContext(ctx, &swipes, `
		SELECT * FROM room_swipes WHERE room_id = $1
	`, id); err != nil {
		return nil, err
	}

	matches, err := r.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := &model.RoomSnapshot{
		ID:         room.ID,
		CreatorID:  room.CreatorID,
		Status:     room.Status,
		Candidates: candidates,
		Roster:     roster,
		Swipes:     make(map[string]map[string]model.Decision, len(roster)),
		Matches:    matches,
		WinnerID:   room.WinnerID,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}

	// Joined participants always appear in the swipes map, even before
	// their first decision.
	for _, p := range roster {
		snap.Swipes[p] = make(map[string]model.Decision)
	}
	for _, s := range swipes {
		if snap.Swipes[s.ParticipantID] == nil {
			snap.Swipes[s.ParticipantID] = make(map[string]model.Decision)
		}
		snap.Swipes[s.ParticipantID][s.CandidateID] = s.Decision
	}

	return snap, nil
}

func (r *roomRepo) AddParticipant(ctx context.Context, roomID, participantID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, participant_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, participant_id) DO NOTHING
	`, roomID, participantID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *roomRepo) RecordSwipe(ctx context.Context, roomID, participantID, candidateID string, decision model.Decision) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO room_swipes (room_id, participant_id, candidate_id, decision)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, participant_id, candidate_id) DO NOTHING
	`, roomID, participantID, candidateID, decision)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *roomRepo) SwipesForCandidate(ctx context.Context, roomID, candidateID string) (map[string]model.Decision, error) {
	var swipes []model.Swipe
	if err := r.db.SelectContext(ctx, &swipes, `
		SELECT * FROM room_swipes WHERE room_id = $1 AND candidate_id = $2
	`, roomID, candidateID); err != nil {
		return nil, err
	}

	decisions := make(map[string]model.Decision, len(swipes))
	for _, s := range swipes {
		decisions[s.ParticipantID] = s.Decision
	}
	return decisions, nil
}

func (r *roomRepo) ListRoster(ctx context.Context, roomID string) ([]string, error) {
	var roster []string
	err := r.db.SelectContext(ctx, &roster, `
		SELECT participant_id FROM room_participants
		WHERE room_id = $1 ORDER BY joined_at, participant_id
	`, roomID)
	return roster, err
}

func (r *roomRepo) ListMatches(ctx context.Context, roomID string) ([]string, error) {
	var matches []string
	err := r.db.SelectContext(ctx, &matches, `
		SELECT candidate_id FROM room_matches
		WHERE room_id = $1 ORDER BY matched_at, candidate_id
	`, roomID)
	return matches, err
}

func (r *roomRepo) AppendMatch(ctx context.Context, roomID, candidateID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO room_matches (room_id, candidate_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, candidate_id) DO NOTHING
	`, roomID, candidateID)
	return err
}

func (r *roomRepo) CommitWinner(ctx context.Context, roomID, candidateID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET
			winner_id = $2,
			status = 'decided',
			decided_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND winner_id IS NULL
	`, roomID, candidateID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *roomRepo) Touch(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET updated_at = NOW() WHERE id = $1
	`, roomID)
	return err
}

func (r *roomRepo) DeleteIdle(ctx context.Context, idleFor time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM rooms WHERE updated_at < NOW() - make_interval(secs => $1)
	`, idleFor.Seconds())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
