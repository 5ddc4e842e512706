package model

// Decision is a participant's verdict on a single candidate.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// RoomStatus tracks the room lifecycle.
type RoomStatus string

const (
	RoomStatusActive  RoomStatus = "active"
	RoomStatusDecided RoomStatus = "decided"
)
