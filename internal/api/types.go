package api

import (
	"encoding/json"

	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

type UpdateTokenStatusInput struct {
	TokenID  string             `json:"tokenId"`
	Status   models.TokenStatus `json:"status"`
	DoctorID string             `json:"doctorId"`
}

type PriorityAction string

const (
	ActionIncrease PriorityAction = "increase"
	ActionDecrease PriorityAction = "decrease"
)

type UpdatePriorityInput struct {
	TokenID string         `json:"tokenId"`
	Action  PriorityAction `json:"action"`
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// queueDTO accepts the older queue/currentToken/previousToken field names
// alongside waiting/active/previous.
type queueDTO struct {
	models.DoctorQueueState
	Queue         []models.Token `json:"queue"`
	CurrentToken  *models.Token  `json:"currentToken"`
	PreviousToken *models.Token  `json:"previousToken"`
}

func (d queueDTO) toState() models.DoctorQueueState {
	st := d.DoctorQueueState
	if st.Waiting == nil && d.Queue != nil {
		st.Waiting = d.Queue
	}
	if st.Active == nil {
		st.Active = d.CurrentToken
	}
	if st.Previous == nil {
		st.Previous = d.PreviousToken
	}
	if st.TotalPatients == 0 {
		st.TotalPatients = len(st.Waiting)
		if st.Active != nil {
			st.TotalPatients++
		}
	}
	return st
}
