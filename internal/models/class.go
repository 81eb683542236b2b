package models

import "time"

// SchoolClass represents an academic class with bounded seats.
//
// Slots is nil when the class has no configured capacity; the legacy data
// treats such classes as unlimited and the capacity ledger fails open.
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Slots     *int      `db:"slots" json:"slots,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassOccupancy extends SchoolClass with the computed seat usage.
type ClassOccupancy struct {
	SchoolClass
	Occupied int `db:"occupied" json:"occupied"`
}

// Overbooked reports whether the class already holds more students than its
// configured capacity. Pre-existing overbooked data is surfaced, never fixed.
func (c ClassOccupancy) Overbooked() bool {
	return c.Slots != nil && c.Occupied > *c.Slots
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	SchoolID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
