package models

// OutcomeKind classifies the result of processing one applicant.
type OutcomeKind string

const (
	// OutcomePromoted means a student record was created and the applicant
	// advanced to APPROVED.
	OutcomePromoted OutcomeKind = "PROMOTED"
	// OutcomeRejected means the applicant failed the pass mark and advanced
	// to REJECTED.
	OutcomeRejected OutcomeKind = "REJECTED"
	// OutcomeSkipped means the applicant was already in a terminal state and
	// processing was a no-op.
	OutcomeSkipped OutcomeKind = "SKIPPED"
	// OutcomeBlocked means a precondition was unmet; nothing was mutated.
	OutcomeBlocked OutcomeKind = "BLOCKED"
	// OutcomeDuplicate means the student store rejected creation because a
	// student already exists for the applicant.
	OutcomeDuplicate OutcomeKind = "DUPLICATE"
	// OutcomeError means a gateway failure interrupted processing.
	OutcomeError OutcomeKind = "ERROR"
)

// BlockReason names the precondition that stopped an applicant.
type BlockReason string

const (
	BlockReasonScoreMissing     BlockReason = "score missing"
	BlockReasonMissingPlacement BlockReason = "missing class/school"
	BlockReasonClassFull        BlockReason = "class full"
	BlockReasonInProgress       BlockReason = "promotion already in progress"
)

// Outcome is the per-applicant result of the admission pipeline.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	StudentID string      `json:"student_id,omitempty"`
	Reason    BlockReason `json:"reason,omitempty"`
	Err       error       `json:"-"`
}

// BlockedItem pairs an applicant with the precondition that stopped them.
type BlockedItem struct {
	Name   string      `json:"name"`
	Reason BlockReason `json:"reason"`
}

// BatchReport aggregates one batch admission run. Every processed applicant
// lands in exactly one bucket.
type BatchReport struct {
	Promoted   []string      `json:"promoted"`
	Duplicates []string      `json:"duplicates"`
	Errors     []string      `json:"errors"`
	Blocked    []BlockedItem `json:"blocked"`
	Rejected   []string      `json:"rejected"`
	Skipped    int           `json:"skipped"`
}

// Processed returns the total number of applicants accounted for.
func (r BatchReport) Processed() int {
	return len(r.Promoted) + len(r.Duplicates) + len(r.Errors) + len(r.Blocked) + len(r.Rejected) + r.Skipped
}
