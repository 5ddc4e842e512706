package database

import (
	"context"
	"fmt"
)

// Migrate creates all tables needed by the server.
// Safe to call multiple times - uses IF NOT EXISTS.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- Participant identities (guest or named)
CREATE TABLE IF NOT EXISTS identities (
    id TEXT PRIMARY KEY,
    token_hash TEXT NOT NULL UNIQUE,
    display_name TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Rooms; the id is the short shareable code
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    creator_id TEXT NOT NULL REFERENCES identities(id),
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'decided')),
    winner_id TEXT,
    decided_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rooms_updated_at ON rooms(updated_at);

-- Candidates; position preserves the insertion order fixed at creation
CREATE TABLE IF NOT EXISTS room_candidates (
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    rating DOUBLE PRECISION,
    photo_url TEXT,
    PRIMARY KEY (room_id, candidate_id),
    UNIQUE (room_id, position)
);

-- Roster; join-only, ordered by joined_at
CREATE TABLE IF NOT EXISTS room_participants (
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL REFERENCES identities(id),
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (room_id, participant_id)
);

-- Swipes; one row per (participant, candidate), write-once
CREATE TABLE IF NOT EXISTS room_swipes (
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    decision TEXT NOT NULL CHECK (decision IN ('approve', 'reject')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (room_id, participant_id, candidate_id)
);

-- Matches; insert-only set
CREATE TABLE IF NOT EXISTS room_matches (
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    matched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (room_id, candidate_id)
);

-- Winner history; survives room deletion, keyed like the client-side
-- history documents so duplicate writes are no-ops
CREATE TABLE IF NOT EXISTS history (
    participant_id TEXT NOT NULL REFERENCES identities(id),
    room_id TEXT NOT NULL,
    winner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    decided_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (participant_id, room_id, winner_id)
);

CREATE INDEX IF NOT EXISTS idx_history_participant ON history(participant_id, decided_at DESC);
`
