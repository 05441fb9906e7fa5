package models

import "github.com/vogiaan1904/clinicqueue-sync/pkg/util"

type EventType string

const (
	EventQueueUpdate    EventType = "queue_update"
	EventTokenCalled    EventType = "token_called"
	EventTokenCompleted EventType = "token_completed"
	EventTokenCancelled EventType = "token_cancelled"
)

// QueueUpdateEvent is a partial refresh of one doctor's queue. The server
// may send the in-progress token as CurrentToken or mixed into Waiting.
type QueueUpdateEvent struct {
	DoctorID       string         `json:"doctorId"`
	DepartmentID   string         `json:"departmentId"`
	DoctorName     string         `json:"doctorName,omitempty"`
	DepartmentName string         `json:"departmentName,omitempty"`
	Waiting        []Token        `json:"waiting"`
	CurrentToken   *Token         `json:"currentToken,omitempty"`
	TotalPatients  int            `json:"totalPatients"`
	Timestamp      util.Timestamp `json:"timestamp"`
}

// TokenEvent carries token_called, token_completed and token_cancelled.
type TokenEvent struct {
	TokenID      string         `json:"tokenId"`
	DoctorID     string         `json:"doctorId"`
	DepartmentID string         `json:"departmentId,omitempty"`
	Token        *Token         `json:"token,omitempty"`
	Timestamp    util.Timestamp `json:"timestamp"`
}
