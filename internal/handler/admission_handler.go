package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/dto"
	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

// AdmissionHandler exposes the applicant admission pipeline.
type AdmissionHandler struct {
	admissions *service.AdmissionService
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions}
}

// ProcessOne godoc
// @Summary Run the admission pipeline for a single applicant
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.ProcessApplicantRequest false "Options"
// @Success 200 {object} response.Envelope
// @Router /admissions/applicants/{id} [post]
func (h *AdmissionHandler) ProcessOne(c *gin.Context) {
	var req dto.ProcessApplicantRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	passMark := 0.0
	if req.PassMark != nil {
		passMark = *req.PassMark
	}
	outcome, err := h.admissions.RunOne(c.Request.Context(), c.Param("id"), passMark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOutcomeResponse(outcome), nil)
}

// Batch godoc
// @Summary Run the admission pipeline for all pending applicants
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.BatchAdmissionRequest false "Options"
// @Success 200 {object} response.Envelope
// @Router /admissions/batch [post]
func (h *AdmissionHandler) Batch(c *gin.Context) {
	var req dto.BatchAdmissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	passMark := 0.0
	if req.PassMark != nil {
		passMark = *req.PassMark
	}
	filter := models.ApplicantFilter{ClassID: req.ClassID, CategoryID: req.CategoryID}

	report, err := h.admissions.RunPending(c.Request.Context(), filter, passMark)
	if err != nil {
		// A cancelled run still carries the partial report.
		if report != nil {
			response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"partial": true})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
