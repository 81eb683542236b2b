package models

import "time"

// StudentStatus enumerates the enrollment states of a student record.
type StudentStatus string

const (
	// StudentStatusInactive marks a shortlisted student created by the
	// admission pipeline but not yet activated into the cohort.
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// AdmissionStatus records how a student entered the institution.
type AdmissionStatus string

const (
	AdmissionStatusAdmitted AdmissionStatus = "ADMITTED"
)

// Occupying reports whether the status counts against class capacity.
// Graduated students no longer hold a seat.
func (s StudentStatus) Occupying() bool {
	return s == StudentStatusInactive || s == StudentStatusActive
}

// Student represents an admitted learner. Exactly one student record exists
// per approved applicant; ApplicantID carries the uniqueness guard.
type Student struct {
	ID              string          `db:"id" json:"id"`
	ApplicantID     string          `db:"applicant_id" json:"applicant_id"`
	FirstName       string          `db:"first_name" json:"first_name"`
	LastName        string          `db:"last_name" json:"last_name"`
	Gender          string          `db:"gender" json:"gender"`
	BirthDate       time.Time       `db:"birth_date" json:"birth_date"`
	GuardianName    string          `db:"guardian_name" json:"guardian_name"`
	GuardianPhone   string          `db:"guardian_phone" json:"guardian_phone"`
	ClassID         string          `db:"class_id" json:"class_id"`
	SchoolID        string          `db:"school_id" json:"school_id"`
	AcademicYearID  string          `db:"academic_year_id" json:"academic_year_id"`
	AdmissionStatus AdmissionStatus `db:"admission_status" json:"admission_status"`
	Status          StudentStatus   `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins the student's name parts for reporting.
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID        string
	SchoolID       string
	AcademicYearID string
	Status         StudentStatus
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// StudentDetail contains student information with class context.
type StudentDetail struct {
	Student
	ClassName         *string `db:"class_name" json:"class_name,omitempty"`
	AcademicYearLabel *string `db:"academic_year_label" json:"academic_year_label,omitempty"`
}
