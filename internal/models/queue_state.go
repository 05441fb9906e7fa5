package models

import "github.com/vogiaan1904/clinicqueue-sync/pkg/util"

// DoctorQueueState is one doctor's reconciled queue. Active is never
// present in Waiting, and Waiting keeps the order the server sent.
type DoctorQueueState struct {
	DoctorID       string         `json:"doctorId"`
	DepartmentID   string         `json:"departmentId"`
	DoctorName     string         `json:"doctorName,omitempty"`
	DepartmentName string         `json:"departmentName,omitempty"`
	Waiting        []Token        `json:"waiting"`
	Active         *Token         `json:"active"`
	Previous       *Token         `json:"previous"`
	TotalPatients  int            `json:"totalPatients"`
	Timestamp      util.Timestamp `json:"timestamp"`
}

func (s DoctorQueueState) Clone() DoctorQueueState {
	c := s
	c.Waiting = append([]Token(nil), s.Waiting...)
	c.Active = s.Active.Clone()
	c.Previous = s.Previous.Clone()
	return c
}

// IndexOf returns the position of tokenID in Waiting, or -1.
func (s DoctorQueueState) IndexOf(tokenID string) int {
	for i, t := range s.Waiting {
		if t.TokenID == tokenID {
			return i
		}
	}
	return -1
}

func (s DoctorQueueState) NextToken() *Token {
	if len(s.Waiting) == 0 {
		return nil
	}
	t := s.Waiting[0]
	return &t
}
