package models

type Department struct {
	DepartmentID string `json:"departmentId"`
	Name         string `json:"name"`
}

type Doctor struct {
	DoctorID     string `json:"doctorId"`
	Name         string `json:"name"`
	DepartmentID string `json:"departmentId"`
}
