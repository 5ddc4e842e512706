package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/tastebuds/room-server-go/internal/errors"
	"github.com/tastebuds/room-server-go/internal/model"
	"github.com/tastebuds/room-server-go/internal/repository"
	"github.com/tastebuds/room-server-go/internal/sse"
)

const (
	// EventRoomUpdated is published after every committed room mutation.
	EventRoomUpdated = "room_updated"

	createCodeAttempts = 5
)

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a pass-through.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// Publisher announces committed room mutations to subscribers.
// *sse.Broker satisfies it.
type Publisher interface {
	Publish(ctx context.Context, roomID string, eventType string) error
}

var _ Publisher = (*sse.Broker)(nil)

type RoomService struct {
	tx           TxRunner
	roomRepo     repository.RoomRepository
	identityRepo repository.IdentityRepository
	historyRepo  repository.HistoryRepository
	publisher    Publisher
}

func NewRoomService(
	tx TxRunner,
	roomRepo repository.RoomRepository,
	identityRepo repository.IdentityRepository,
	historyRepo repository.HistoryRepository,
	publisher Publisher,
) *RoomService {
	return &RoomService{
		tx:           tx,
		roomRepo:     roomRepo,
		identityRepo: identityRepo,
		historyRepo:  historyRepo,
		publisher:    publisher,
	}
}

// Create makes a new room with the creator as the only roster member and
// the candidate list fixed for the room's lifetime. The insert fails rather
// than overwrites on a code collision; a fresh code is drawn and retried.
func (s *RoomService) Create(ctx context.Context, creator *model.Identity, candidates []model.Candidate) (*model.RoomSnapshot, error) {
	if len(candidates) == 0 {
		return nil, apperrors.ValidationError("At least one candidate is required")
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.ID == "" {
			return nil, apperrors.MissingRequired("candidate id")
		}
		if c.Name == "" {
			return nil, apperrors.MissingRequired("candidate name")
		}
		if seen[c.ID] {
			return nil, apperrors.InvalidInput("candidates", fmt.Sprintf("duplicate candidate id %q", c.ID))
		}
		seen[c.ID] = true
	}

	var roomID string
	for attempt := 0; attempt < createCodeAttempts; attempt++ {
		code := generateRoomCode()
		err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.roomRepo.WithTx(tx).Insert(ctx, model.CreateRoomParams{
				ID:         code,
				CreatorID:  creator.ID,
				Candidates: candidates,
			})
		})
		if errors.Is(err, repository.ErrDuplicateRoomID) {
			continue
		}
		if err != nil {
			return nil, apperrors.Database(err)
		}
		roomID = code
		break
	}
	if roomID == "" {
		return nil, apperrors.Internal("Could not allocate a unique room code")
	}

	log.Info().
		Str("roomId", roomID).
		Str("creatorId", creator.ID).
		Int("candidates", len(candidates)).
		Msg("room created")

	return s.snapshot(ctx, roomID)
}

// Join adds the participant to the roster. Re-joining is a no-op, not an
// error; the roster only ever grows.
func (s *RoomService) Join(ctx context.Context, identity *model.Identity, code string) (*model.RoomSnapshot, error) {
	roomID, err := s.resolveRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	var added bool
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.roomRepo.WithTx(tx)
		added, err = repo.AddParticipant(ctx, roomID, identity.ID)
		if err != nil {
			return err
		}
		if added {
			return repo.Touch(ctx, roomID)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if added {
		log.Info().Str("roomId", roomID).Str("participantId", identity.ID).Msg("participant joined")
		s.publish(ctx, roomID)
	}

	return s.snapshot(ctx, roomID)
}

// Snapshot returns the current room document for the given code.
func (s *RoomService) Snapshot(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	roomID, err := s.resolveRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, roomID)
}

// RecordSwipe stores one write-once decision and, for approvals, runs the
// incremental match check for just the swiped candidate against the roster
// as of now. The swipe insert and its match evaluation share one
// transaction: they commit together or not at all, so a transient failure
// during evaluation never strands a committed approval behind the
// write-once guard. The match append is idempotent, so racing evaluators
// converge.
func (s *RoomService) RecordSwipe(ctx context.Context, identity *model.Identity, code, candidateID string, decision model.Decision) (*model.RoomSnapshot, error) {
	if candidateID == "" {
		return nil, apperrors.MissingRequired("candidateId")
	}
	if !decision.Valid() {
		return nil, apperrors.InvalidInput("decision", "must be approve or reject")
	}

	snap, err := s.Snapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	if snap.WinnerID != nil {
		return nil, apperrors.Conflict("Room is already decided")
	}
	if !snap.HasParticipant(identity.ID) {
		return nil, apperrors.Forbidden("Join the room before swiping")
	}
	if !snap.HasCandidate(candidateID) {
		return nil, apperrors.InvalidInput("candidateId", "not a candidate in this room")
	}

	var recorded bool
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.roomRepo.WithTx(tx)

		// The snapshot check above races with a concurrent winner commit;
		// the row lock makes this re-check authoritative.
		room, err := repo.LockRoom(ctx, snap.ID)
		if err != nil {
			return err
		}
		if room == nil {
			return apperrors.NotFound("Room")
		}
		if room.WinnerID != nil {
			return apperrors.Conflict("Room is already decided")
		}

		recorded, err = repo.RecordSwipe(ctx, snap.ID, identity.ID, candidateID, decision)
		if err != nil {
			return err
		}
		if !recorded {
			return nil
		}

		if decision == model.DecisionApprove {
			if err := s.evaluateMatch(ctx, repo, snap.ID, candidateID); err != nil {
				return err
			}
		}

		return repo.Touch(ctx, snap.ID)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}
	if !recorded {
		return nil, apperrors.Conflict("Decision already recorded for this candidate")
	}

	log.Debug().
		Str("roomId", snap.ID).
		Str("participantId", identity.ID).
		Str("candidateId", candidateID).
		Str("decision", string(decision)).
		Msg("swipe recorded")

	s.publish(ctx, snap.ID)
	return s.snapshot(ctx, snap.ID)
}

// evaluateMatch re-checks the predicate for a single candidate against the
// roster and swipe state as seen by the caller's transaction, appending to
// the match set when satisfied.
func (s *RoomService) evaluateMatch(ctx context.Context, repo repository.RoomRepository, roomID, candidateID string) error {
	roster, err := repo.ListRoster(ctx, roomID)
	if err != nil {
		return err
	}
	decisions, err := repo.SwipesForCandidate(ctx, roomID, candidateID)
	if err != nil {
		return err
	}

	if !matchSatisfied(roster, decisions) {
		return nil
	}

	if err := repo.AppendMatch(ctx, roomID, candidateID); err != nil {
		return err
	}

	log.Info().
		Str("roomId", roomID).
		Str("candidateId", candidateID).
		Msg("candidate matched")

	return nil
}

// SelectWinner draws one match uniformly at random and commits it with a
// compare-and-set: the first committer wins, later and concurrent callers
// all observe the same winner.
func (s *RoomService) SelectWinner(ctx context.Context, identity *model.Identity, code string) (*model.RoomSnapshot, error) {
	snap, err := s.Snapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	if !snap.HasParticipant(identity.ID) {
		return nil, apperrors.Forbidden("Join the room before selecting a winner")
	}

	if snap.WinnerID != nil {
		return snap, nil
	}

	if len(snap.Matches) == 0 {
		return nil, apperrors.PreconditionFailed("No matches to select a winner from")
	}

	pick := snap.Matches[randIndex(len(snap.Matches))]

	committed, err := s.roomRepo.CommitWinner(ctx, snap.ID, pick)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	snap, err = s.snapshot(ctx, snap.ID)
	if err != nil {
		return nil, err
	}

	if committed {
		log.Info().
			Str("roomId", snap.ID).
			Str("winnerId", pick).
			Msg("winner selected")
		s.recordHistory(ctx, snap)
		s.publish(ctx, snap.ID)
	}

	return snap, nil
}

// recordHistory writes the decided room into each named participant's
// history. Failures are logged, not surfaced: the entries are keyed by
// (participant, room, winner), so any later retry is a safe duplicate.
func (s *RoomService) recordHistory(ctx context.Context, snap *model.RoomSnapshot) {
	if snap.WinnerID == nil {
		return
	}
	winner := snap.CandidateByID(*snap.WinnerID)
	if winner == nil {
		return
	}

	for _, participantID := range snap.Roster {
		identity, err := s.identityRepo.FindByID(ctx, participantID)
		if err != nil {
			log.Warn().Err(err).Str("participantId", participantID).Msg("history: identity lookup failed")
			continue
		}
		if identity == nil || identity.Anonymous() {
			continue
		}

		err = s.historyRepo.Record(ctx, model.HistoryEntry{
			ParticipantID: participantID,
			RoomID:        snap.ID,
			WinnerID:      winner.ID,
			Name:          winner.Name,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("participantId", participantID).
				Str("roomId", snap.ID).
				Msg("history: record failed")
		}
	}
}

// resolveRoom normalizes a human-entered code and confirms the room exists.
func (s *RoomService) resolveRoom(ctx context.Context, code string) (string, error) {
	code = normalizeCode(code)
	if code == "" {
		return "", apperrors.MissingRequired("room code")
	}

	room, err := s.roomRepo.FindByID(ctx, code)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if room == nil {
		return "", apperrors.NotFound("Room")
	}
	return room.ID, nil
}

func (s *RoomService) snapshot(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	snap, err := s.roomRepo.Snapshot(ctx, roomID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if snap == nil {
		return nil, apperrors.NotFound("Room")
	}
	return snap, nil
}

func (s *RoomService) publish(ctx context.Context, roomID string) {
	if err := s.publisher.Publish(ctx, roomID, EventRoomUpdated); err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("failed to publish room event")
	}
}
