package models

const AllDepartments = "all"

type Selection struct {
	DepartmentID string `json:"selectedDepartmentId"`
	DoctorID     string `json:"selectedDoctorId"`
}

// Normalize maps an empty department to "all" and clears the doctor when
// no department is selected.
func (s Selection) Normalize() Selection {
	if s.DepartmentID == "" {
		s.DepartmentID = AllDepartments
	}
	if s.DepartmentID == AllDepartments {
		s.DoctorID = ""
	}
	return s
}

func (s Selection) AllDepartments() bool {
	return s.DepartmentID == "" || s.DepartmentID == AllDepartments
}

// PushPair reports the (department, doctor) pair a push subscription
// should be opened for. ok is false unless both are concrete.
func (s Selection) PushPair() (departmentID, doctorID string, ok bool) {
	if s.AllDepartments() || s.DoctorID == "" {
		return "", "", false
	}
	return s.DepartmentID, s.DoctorID, true
}
