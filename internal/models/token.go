package models

type Priority string

const (
	PriorityNormal    Priority = "NORMAL"
	PriorityHigh      Priority = "HIGH"
	PriorityEmergency Priority = "EMERGENCY"
)

var priorityLadder = []Priority{PriorityNormal, PriorityHigh, PriorityEmergency}

func (p Priority) level() int {
	for i, v := range priorityLadder {
		if v == p {
			return i
		}
	}
	return 0
}

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityEmergency
}

// Raise returns the next priority up. ok is false at EMERGENCY.
func (p Priority) Raise() (next Priority, ok bool) {
	lvl := p.level()
	if lvl >= len(priorityLadder)-1 {
		return p, false
	}
	return priorityLadder[lvl+1], true
}

// Lower returns the next priority down. ok is false at NORMAL.
func (p Priority) Lower() (next Priority, ok bool) {
	lvl := p.level()
	if lvl == 0 {
		return p, false
	}
	return priorityLadder[lvl-1], true
}

type TokenStatus string

const (
	StatusIssued     TokenStatus = "ISSUED"
	StatusCheckedIn  TokenStatus = "CHECKED_IN"
	StatusWaiting    TokenStatus = "WAITING"
	StatusInProgress TokenStatus = "IN_PROGRESS"
	StatusCompleted  TokenStatus = "COMPLETED"
	StatusCancelled  TokenStatus = "CANCELLED"
)

// IsWaiting reports whether a token with this status belongs in a
// doctor's waiting list.
func (s TokenStatus) IsWaiting() bool {
	return s == StatusCheckedIn || s == StatusWaiting
}

func (s TokenStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Token struct {
	TokenID      string      `json:"tokenId"`
	TokenValue   string      `json:"tokenValue"`
	Priority     Priority    `json:"priority"`
	Status       TokenStatus `json:"status"`
	PatientID    string      `json:"patientId,omitempty"`
	PatientName  string      `json:"patientName,omitempty"`
	DoctorID     string      `json:"doctorId,omitempty"`
	DepartmentID string      `json:"departmentId,omitempty"`
	Score        float64     `json:"score"`
	Rank         int         `json:"rank"`
}

func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
