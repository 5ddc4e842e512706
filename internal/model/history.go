package model

import "time"

// HistoryEntry records one decided room for one participant. The primary
// key (participant, room, winner) makes duplicate writes no-ops.
type HistoryEntry struct {
	ParticipantID string    `db:"participant_id" json:"-"`
	RoomID        string    `db:"room_id" json:"roomId"`
	WinnerID      string    `db:"winner_id" json:"winnerId"`
	Name          string    `db:"name" json:"name"`
	DecidedAt     time.Time `db:"decided_at" json:"decidedAt"`
}
