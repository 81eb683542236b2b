package models

import "time"

// AdmissionRegisterRow is one applicant line in the admission register export.
type AdmissionRegisterRow struct {
	ApplicantID  string          `db:"applicant_id"`
	FullName     string          `db:"full_name"`
	CategoryName *string         `db:"category_name"`
	ClassName    *string         `db:"class_name"`
	Score        *float64        `db:"score"`
	Status       ApplicantStatus `db:"status"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// EnrollmentRow is one student line in the enrollment roster export.
type EnrollmentRow struct {
	StudentID string        `db:"student_id"`
	FullName  string        `db:"full_name"`
	ClassName *string       `db:"class_name"`
	Status    StudentStatus `db:"status"`
	CreatedAt time.Time     `db:"created_at"`
}

// ReportDataFilter narrows report datasets to a year, class or category.
type ReportDataFilter struct {
	AcademicYearID string
	ClassID        string
	CategoryID     string
}
