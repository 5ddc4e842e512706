package model

import "time"

// Room is the persisted room row. The ID doubles as the human-shareable
// code participants type to join.
type Room struct {
	ID        string     `db:"id" json:"id"`
	CreatorID string     `db:"creator_id" json:"creatorId"`
	Status    RoomStatus `db:"status" json:"status"`
	WinnerID  *string    `db:"winner_id" json:"winnerId,omitempty"`
	DecidedAt *time.Time `db:"decided_at" json:"decidedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Candidate is one restaurant attached to a room. The payload is opaque to
// the match logic; only the ID participates in swipe and match bookkeeping.
type Candidate struct {
	ID       string   `db:"candidate_id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Category string   `db:"category" json:"category,omitempty"`
	Rating   *float64 `db:"rating" json:"rating,omitempty"`
	PhotoURL *string  `db:"photo_url" json:"photoUrl,omitempty"`
}

// Swipe is one recorded decision row.
type Swipe struct {
	RoomID        string    `db:"room_id" json:"-"`
	ParticipantID string    `db:"participant_id" json:"participantId"`
	CandidateID   string    `db:"candidate_id" json:"candidateId"`
	Decision      Decision  `db:"decision" json:"decision"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// RoomSnapshot is the full session document pushed to subscribers on every
// change. Candidates keep creation order, the roster keeps join order and
// matches keep match order.
type RoomSnapshot struct {
	ID         string                         `json:"id"`
	CreatorID  string                         `json:"creatorId"`
	Status     RoomStatus                     `json:"status"`
	Candidates []Candidate                    `json:"candidates"`
	Roster     []string                       `json:"roster"`
	Swipes     map[string]map[string]Decision `json:"swipes"`
	Matches    []string                       `json:"matches"`
	WinnerID   *string                        `json:"winnerId,omitempty"`
	CreatedAt  time.Time                      `json:"createdAt"`
	UpdatedAt  time.Time                      `json:"updatedAt"`
}

// HasCandidate reports whether the candidate belongs to the room.
func (s *RoomSnapshot) HasCandidate(candidateID string) bool {
	for _, c := range s.Candidates {
		if c.ID == candidateID {
			return true
		}
	}
	return false
}

// HasParticipant reports whether the participant has joined the room.
func (s *RoomSnapshot) HasParticipant(participantID string) bool {
	for _, p := range s.Roster {
		if p == participantID {
			return true
		}
	}
	return false
}

// CandidateByID returns the candidate payload, or nil if absent.
func (s *RoomSnapshot) CandidateByID(candidateID string) *Candidate {
	for i := range s.Candidates {
		if s.Candidates[i].ID == candidateID {
			return &s.Candidates[i]
		}
	}
	return nil
}

type CreateRoomParams struct {
	ID         string
	CreatorID  string
	Candidates []Candidate
}
