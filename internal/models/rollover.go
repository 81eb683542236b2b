package models

// ClassMapping maps a current class to its successor for one rollover run.
// A nil target graduates the cohort of the source class.
type ClassMapping map[string]*string

// RolloverReport summarises one year-end rollover run. Handled counts every
// student that moved forward, promoted and graduated alike; a graduation is a
// successful rollover, not a failure.
type RolloverReport struct {
	Handled   int            `json:"handled"`
	Promoted  int            `json:"promoted"`
	Graduated int            `json:"graduated"`
	Failed    int            `json:"failed"`
	Unmapped  []string       `json:"unmapped,omitempty"`
	Failures  []RolloverFail `json:"failures,omitempty"`
}

// RolloverFail records one student the rollover could not move.
type RolloverFail struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}
