package models

import "time"

// ApplicantStatus enumerates the admission states of a registration.
type ApplicantStatus string

const (
	ApplicantStatusPending  ApplicantStatus = "PENDING"
	ApplicantStatusApproved ApplicantStatus = "APPROVED"
	ApplicantStatusRejected ApplicantStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transition.
func (s ApplicantStatus) Terminal() bool {
	return s == ApplicantStatusApproved || s == ApplicantStatusRejected
}

// Applicant represents a registration awaiting an admission decision.
//
// ClassID and SchoolID stay nil until the registrar triages the applicant
// into a concrete class; Score stays nil until the entrance exam is graded.
// A recorded score of exactly zero is indistinguishable from "ungraded" in
// the legacy data and is treated as ungraded by the score evaluator.
type Applicant struct {
	ID               string          `db:"id" json:"id"`
	FirstName        string          `db:"first_name" json:"first_name"`
	LastName         string          `db:"last_name" json:"last_name"`
	Gender           string          `db:"gender" json:"gender"`
	BirthDate        time.Time       `db:"birth_date" json:"birth_date"`
	GuardianName     string          `db:"guardian_name" json:"guardian_name"`
	GuardianPhone    string          `db:"guardian_phone" json:"guardian_phone"`
	CategoryID       *string         `db:"category_id" json:"category_id,omitempty"`
	ClassApplyingFor string          `db:"class_applying_for" json:"class_applying_for"`
	ClassID          *string         `db:"class_id" json:"class_id,omitempty"`
	SchoolID         *string         `db:"school_id" json:"school_id,omitempty"`
	Score            *float64        `db:"score" json:"score,omitempty"`
	Status           ApplicantStatus `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins the applicant's name parts for reporting.
func (a Applicant) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// ApplicantFilter encapsulates allowed search parameters for listing applicants.
type ApplicantFilter struct {
	Status     ApplicantStatus
	CategoryID string
	ClassID    string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ApplicantDetail contains applicant information with category and class context.
type ApplicantDetail struct {
	Applicant
	CategoryName     *string `db:"category_name" json:"category_name,omitempty"`
	CategoryPriority *int    `db:"category_priority" json:"category_priority,omitempty"`
	ClassName        *string `db:"class_name" json:"class_name,omitempty"`
}
