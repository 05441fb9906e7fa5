package service

import (
	"time"

	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

type CommandOutput struct {
	CommandID string        `json:"command_id"`
	Command   string        `json:"command"`
	DoctorID  string        `json:"doctor_id,omitempty"`
	TokenID   string        `json:"token_id"`
	Token     *models.Token `json:"token,omitempty"`
}

// BusyFlags lists the doctors and tokens with a command in flight, per
// operation, so controls can be disabled.
type BusyFlags struct {
	CallingNext    []string `json:"calling_next"`
	Completing     []string `json:"completing"`
	UpdatingTokens []string `json:"updating_tokens"`
	// Unconfirmed lists doctors whose queue still shows an optimistic
	// change the server has not confirmed.
	Unconfirmed []string `json:"unconfirmed"`
}

type PollerStatus struct {
	IsRunning     bool      `json:"is_running"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastRefreshed time.Time `json:"last_refreshed,omitempty"`
	RefreshCount  int64     `json:"refresh_count"`
	ErrorCount    int64     `json:"error_count"`
}
