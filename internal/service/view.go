package service

import (
	"github.com/tastebuds/room-server-go/internal/model"
)

// View is the per-participant read model derived from a room snapshot.
// It is recomputed in full from the latest snapshot on every request and
// holds no state of its own.
type View struct {
	NextCandidate  *model.Candidate  `json:"nextCandidate,omitempty"`
	IsComplete     bool              `json:"isComplete"`
	VisibleMatches []model.Candidate `json:"visibleMatches"`
}

// ComputeView derives the participant's view: the first candidate (in
// creation order) they have not decided on, whether every roster member has
// decided on every candidate, and the matched candidates in creation order.
func ComputeView(snap *model.RoomSnapshot, participantID string) View {
	view := View{
		IsComplete:     everyoneDone(snap),
		VisibleMatches: []model.Candidate{},
	}

	decided := snap.Swipes[participantID]
	for i := range snap.Candidates {
		if _, ok := decided[snap.Candidates[i].ID]; !ok {
			view.NextCandidate = &snap.Candidates[i]
			break
		}
	}

	matched := make(map[string]bool, len(snap.Matches))
	for _, id := range snap.Matches {
		matched[id] = true
	}
	for _, c := range snap.Candidates {
		if matched[c.ID] {
			view.VisibleMatches = append(view.VisibleMatches, c)
		}
	}

	return view
}

// everyoneDone reports whether every roster member has a decision recorded
// for every candidate. Derived on demand, never stored.
func everyoneDone(snap *model.RoomSnapshot) bool {
	for _, p := range snap.Roster {
		decided := snap.Swipes[p]
		for _, c := range snap.Candidates {
			if _, ok := decided[c.ID]; !ok {
				return false
			}
		}
	}
	return true
}
