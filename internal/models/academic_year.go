package models

import "time"

// AcademicYear partitions cohorts; exactly one year is active at a time.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Label     string    `db:"label" json:"label"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Category groups applicants for triage ordering; it never affects capacity.
type Category struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Priority int    `db:"priority" json:"priority"`
}
