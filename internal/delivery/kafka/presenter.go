package kafka

import "time"

// CommandAuditEvent records the outcome of one dispatched command.
type CommandAuditEvent struct {
	CommandID   string    `json:"command_id"`
	Command     string    `json:"command"`
	DoctorID    string    `json:"doctor_id,omitempty"`
	TokenID     string    `json:"token_id,omitempty"`
	Target      string    `json:"target,omitempty"` // target status or priority action
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	Timestamp   time.Time `json:"timestamp"`
}
