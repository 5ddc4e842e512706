package service

import (
	"github.com/tastebuds/room-server-go/internal/model"
)

// matchSatisfied is the match predicate: a candidate is a match iff every
// current roster member has an approve recorded for it. A roster of one can
// never match; mutual approval needs at least two participants.
//
// decisions maps participant -> decision for a single candidate. Rejects
// (and missing entries) fail the predicate.
func matchSatisfied(roster []string, decisions map[string]model.Decision) bool {
	if len(roster) < 2 {
		return false
	}
	for _, p := range roster {
		if decisions[p] != model.DecisionApprove {
			return false
		}
	}
	return true
}
