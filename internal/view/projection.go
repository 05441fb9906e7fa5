// Package view derives the dashboard's display model from reconciled queue
// state. Everything here is pure: no I/O, no locking, no mutation of its
// inputs.
package view

import "github.com/vogiaan1904/clinicqueue-sync/internal/models"

const upcomingCount = 3

type QueueView struct {
	Selection      models.Selection `json:"selection"`
	DoctorID       string           `json:"doctorId,omitempty"`
	DepartmentID   string           `json:"departmentId,omitempty"`
	DoctorName     string           `json:"doctorName,omitempty"`
	DepartmentName string           `json:"departmentName,omitempty"`

	CurrentToken   *models.Token  `json:"currentToken"`
	PreviousToken  *models.Token  `json:"previousToken"`
	NextToken      *models.Token  `json:"nextToken"`
	WaitingQueue   []models.Token `json:"waitingQueue"`
	UpcomingTokens []models.Token `json:"upcomingTokens"`
	WaitingCount   int            `json:"waitingCount"`

	// Totals are scoped to the selection, or span every doctor when
	// nothing is selected.
	TotalWaiting      int                     `json:"totalWaiting"`
	TotalPatients     int                     `json:"totalPatients"`
	PriorityBreakdown map[models.Priority]int `json:"priorityBreakdown"`

	Departments []models.Department `json:"departments"`
	Doctors     []models.Doctor     `json:"doctors"`
}

// Project resolves the display queue for sel: the selected doctor, else
// the first doctor of the selected department, else the first available
// queue. states must be in the engine's first-seen order.
func Project(sel models.Selection, states []models.DoctorQueueState, departments []models.Department, doctors []models.Doctor) QueueView {
	sel = sel.Normalize()

	v := QueueView{
		Selection:         sel,
		WaitingQueue:      []models.Token{},
		UpcomingTokens:    []models.Token{},
		PriorityBreakdown: make(map[models.Priority]int),
		Departments:       departments,
		Doctors:           doctorsIn(sel, doctors),
	}
	if v.Departments == nil {
		v.Departments = []models.Department{}
	}

	if st, ok := resolve(sel, states, doctors); ok {
		v.DoctorID = st.DoctorID
		v.DepartmentID = st.DepartmentID
		v.DoctorName = st.DoctorName
		v.DepartmentName = st.DepartmentName
		v.CurrentToken = st.Active.Clone()
		v.PreviousToken = st.Previous.Clone()
		v.NextToken = st.NextToken()
		v.WaitingQueue = append(v.WaitingQueue, st.Waiting...)
		if len(st.Waiting) > 1 {
			end := min(len(st.Waiting), 1+upcomingCount)
			v.UpcomingTokens = append(v.UpcomingTokens, st.Waiting[1:end]...)
		}
		v.WaitingCount = len(st.Waiting)
		fillNames(&v, departments, doctors)
	}

	for _, st := range states {
		if !inScope(sel, st) {
			continue
		}
		v.TotalWaiting += len(st.Waiting)
		v.TotalPatients += st.TotalPatients
		for _, t := range st.Waiting {
			p := t.Priority
			if !p.Valid() {
				p = models.PriorityNormal
			}
			v.PriorityBreakdown[p]++
		}
	}

	return v
}

func resolve(sel models.Selection, states []models.DoctorQueueState, doctors []models.Doctor) (models.DoctorQueueState, bool) {
	if len(states) == 0 {
		return models.DoctorQueueState{}, false
	}

	byDoctor := make(map[string]int, len(states))
	for i, st := range states {
		byDoctor[st.DoctorID] = i
	}

	if sel.DoctorID != "" {
		if i, ok := byDoctor[sel.DoctorID]; ok {
			return states[i], true
		}
	}

	if !sel.AllDepartments() {
		for _, d := range doctors {
			if d.DepartmentID != sel.DepartmentID {
				continue
			}
			if i, ok := byDoctor[d.DoctorID]; ok {
				return states[i], true
			}
		}
		for _, st := range states {
			if st.DepartmentID == sel.DepartmentID {
				return st, true
			}
		}
	}

	return states[0], true
}

func inScope(sel models.Selection, st models.DoctorQueueState) bool {
	if sel.DoctorID != "" {
		return st.DoctorID == sel.DoctorID
	}
	if !sel.AllDepartments() {
		return st.DepartmentID == sel.DepartmentID
	}
	return true
}

func doctorsIn(sel models.Selection, doctors []models.Doctor) []models.Doctor {
	out := []models.Doctor{}
	for _, d := range doctors {
		if sel.AllDepartments() || d.DepartmentID == sel.DepartmentID {
			out = append(out, d)
		}
	}
	return out
}

// fillNames backfills display names the queue payload left empty.
func fillNames(v *QueueView, departments []models.Department, doctors []models.Doctor) {
	if v.DoctorName == "" {
		for _, d := range doctors {
			if d.DoctorID == v.DoctorID {
				v.DoctorName = d.Name
				break
			}
		}
	}
	if v.DepartmentName == "" {
		for _, d := range departments {
			if d.DepartmentID == v.DepartmentID {
				v.DepartmentName = d.Name
				break
			}
		}
	}
}
