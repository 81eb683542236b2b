package dto

import "github.com/noah-isme/admission-api/internal/models"

// BatchAdmissionRequest captures POST /admissions/batch payload. The pending
// cohort can optionally be narrowed by class or category.
type BatchAdmissionRequest struct {
	PassMark   *float64 `json:"pass_mark" validate:"omitempty,gt=0"`
	ClassID    string   `json:"class_id,omitempty"`
	CategoryID string   `json:"category_id,omitempty"`
}

// ProcessApplicantRequest captures the single-applicant admission payload.
type ProcessApplicantRequest struct {
	PassMark *float64 `json:"pass_mark" validate:"omitempty,gt=0"`
}

// RolloverRequest captures POST /promotions/rollover payload. A null target
// class graduates the students of the source class.
type RolloverRequest struct {
	SourceYearID string             `json:"source_year_id" validate:"required"`
	TargetYearID string             `json:"target_year_id" validate:"required"`
	Mapping      map[string]*string `json:"mapping" validate:"required"`
}

// OutcomeResponse flattens a pipeline outcome for API consumers.
type OutcomeResponse struct {
	Kind      models.OutcomeKind `json:"kind"`
	StudentID string             `json:"student_id,omitempty"`
	Reason    models.BlockReason `json:"reason,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// NewOutcomeResponse converts an Outcome into its API shape.
func NewOutcomeResponse(o models.Outcome) OutcomeResponse {
	resp := OutcomeResponse{Kind: o.Kind, StudentID: o.StudentID, Reason: o.Reason}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}
