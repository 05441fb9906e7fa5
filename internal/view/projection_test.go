package view

import (
	"testing"

	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

func tok(id string, p models.Priority) models.Token {
	return models.Token{TokenID: id, TokenValue: id, Priority: p, Status: models.StatusWaiting}
}

func fixture() ([]models.DoctorQueueState, []models.Department, []models.Doctor) {
	states := []models.DoctorQueueState{
		{
			DoctorID:      "d1",
			DepartmentID:  "cardio",
			Waiting:       []models.Token{tok("a1", models.PriorityNormal), tok("a2", models.PriorityHigh)},
			TotalPatients: 2,
		},
		{
			DoctorID:     "d2",
			DepartmentID: "derm",
			Active:       &models.Token{TokenID: "b0", Status: models.StatusInProgress},
			Previous:     &models.Token{TokenID: "bp", Status: models.StatusCompleted},
			Waiting: []models.Token{
				tok("b1", models.PriorityEmergency),
				tok("b2", models.PriorityNormal),
				tok("b3", models.PriorityNormal),
				tok("b4", models.PriorityHigh),
				tok("b5", models.PriorityNormal),
			},
			TotalPatients: 6,
		},
		{
			DoctorID:      "d3",
			DepartmentID:  "derm",
			Waiting:       []models.Token{tok("c1", models.PriorityNormal)},
			TotalPatients: 1,
		},
	}
	departments := []models.Department{{DepartmentID: "cardio", Name: "Cardiology"}, {DepartmentID: "derm", Name: "Dermatology"}}
	doctors := []models.Doctor{
		{DoctorID: "d1", Name: "Dr. One", DepartmentID: "cardio"},
		{DoctorID: "d3", Name: "Dr. Three", DepartmentID: "derm"},
		{DoctorID: "d2", Name: "Dr. Two", DepartmentID: "derm"},
	}
	return states, departments, doctors
}

func TestProjectResolution(t *testing.T) {
	states, departments, doctors := fixture()

	tcs := map[string]struct {
		sel        models.Selection
		states     []models.DoctorQueueState
		wantDoctor string
	}{
		"exact doctor": {
			sel:        models.Selection{DepartmentID: "derm", DoctorID: "d2"},
			states:     states,
			wantDoctor: "d2",
		},
		"first doctor of department in directory order": {
			sel:        models.Selection{DepartmentID: "derm"},
			states:     states,
			wantDoctor: "d3",
		},
		"unknown doctor falls back to department": {
			sel:        models.Selection{DepartmentID: "derm", DoctorID: "zz"},
			states:     states,
			wantDoctor: "d3",
		},
		"department without queues falls back to first available": {
			sel:        models.Selection{DepartmentID: "ortho"},
			states:     states,
			wantDoctor: "d1",
		},
		"all departments": {
			sel:        models.Selection{DepartmentID: models.AllDepartments},
			states:     states,
			wantDoctor: "d1",
		},
		"none": {
			sel:        models.Selection{DepartmentID: "derm", DoctorID: "d2"},
			states:     nil,
			wantDoctor: "",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			v := Project(tc.sel, tc.states, departments, doctors)
			if v.DoctorID != tc.wantDoctor {
				t.Fatalf("resolved doctor=%q, want %q", v.DoctorID, tc.wantDoctor)
			}
		})
	}
}

func TestProjectDerivedFields(t *testing.T) {
	states, departments, doctors := fixture()

	v := Project(models.Selection{DepartmentID: "derm", DoctorID: "d2"}, states, departments, doctors)

	if v.CurrentToken == nil || v.CurrentToken.TokenID != "b0" {
		t.Fatalf("current=%+v", v.CurrentToken)
	}
	if v.PreviousToken == nil || v.PreviousToken.TokenID != "bp" {
		t.Fatalf("previous=%+v", v.PreviousToken)
	}
	if v.NextToken == nil || v.NextToken.TokenID != "b1" {
		t.Fatalf("next=%+v", v.NextToken)
	}
	if got := ids(v.UpcomingTokens); got != "b2,b3,b4" {
		t.Fatalf("upcoming=%s, want b2,b3,b4", got)
	}
	if got := ids(v.WaitingQueue); got != "b1,b2,b3,b4,b5" {
		t.Fatalf("waiting=%s", got)
	}
	if v.WaitingCount != 5 || v.TotalWaiting != 5 || v.TotalPatients != 6 {
		t.Fatalf("counts waiting=%d total=%d patients=%d", v.WaitingCount, v.TotalWaiting, v.TotalPatients)
	}
	if v.DoctorName != "Dr. Two" || v.DepartmentName != "Dermatology" {
		t.Fatalf("names %q / %q", v.DoctorName, v.DepartmentName)
	}
	if len(v.Doctors) != 2 {
		t.Fatalf("doctors in department=%d, want 2", len(v.Doctors))
	}
	if v.PriorityBreakdown[models.PriorityEmergency] != 1 || v.PriorityBreakdown[models.PriorityNormal] != 3 {
		t.Fatalf("breakdown=%v", v.PriorityBreakdown)
	}

	// The projection hands out copies.
	v.CurrentToken.TokenID = "mutated"
	if states[1].Active.TokenID != "b0" {
		t.Fatal("projection aliased the engine's active token")
	}
}

func TestProjectScopedTotals(t *testing.T) {
	states, departments, doctors := fixture()

	tcs := map[string]struct {
		sel          models.Selection
		wantWaiting  int
		wantPatients int
	}{
		"all":        {sel: models.Selection{}, wantWaiting: 8, wantPatients: 9},
		"department": {sel: models.Selection{DepartmentID: "derm"}, wantWaiting: 6, wantPatients: 7},
		"doctor":     {sel: models.Selection{DepartmentID: "cardio", DoctorID: "d1"}, wantWaiting: 2, wantPatients: 2},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			v := Project(tc.sel, states, departments, doctors)
			if v.TotalWaiting != tc.wantWaiting || v.TotalPatients != tc.wantPatients {
				t.Fatalf("totals waiting=%d patients=%d, want %d/%d", v.TotalWaiting, v.TotalPatients, tc.wantWaiting, tc.wantPatients)
			}
		})
	}
}

func TestProjectShortQueue(t *testing.T) {
	states := []models.DoctorQueueState{{DoctorID: "d1", DepartmentID: "x", Waiting: []models.Token{tok("only", models.PriorityNormal)}}}

	v := Project(models.Selection{}, states, nil, nil)
	if v.NextToken == nil || v.NextToken.TokenID != "only" {
		t.Fatalf("next=%+v", v.NextToken)
	}
	if len(v.UpcomingTokens) != 0 {
		t.Fatalf("upcoming=%v, want empty", v.UpcomingTokens)
	}
	if v.Departments == nil || v.Doctors == nil {
		t.Fatal("lists must encode as [] not null")
	}
}

func ids(tokens []models.Token) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += ","
		}
		out += t.TokenID
	}
	return out
}
