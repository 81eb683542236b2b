package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

// ApplicantHandler exposes applicant registration and triage endpoints.
type ApplicantHandler struct {
	applicants *service.ApplicantService
}

// NewApplicantHandler constructs ApplicantHandler.
func NewApplicantHandler(applicants *service.ApplicantService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants}
}

// List godoc
// @Summary List applicants
// @Tags Applicants
// @Produce json
// @Param status query string false "Filter by status"
// @Param categoryId query string false "Filter by category"
// @Param classId query string false "Filter by assigned class"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applicants [get]
func (h *ApplicantHandler) List(c *gin.Context) {
	var filter models.ApplicantFilter
	filter.Status = models.ApplicantStatus(strings.ToUpper(c.Query("status")))
	filter.CategoryID = c.Query("categoryId")
	filter.ClassID = c.Query("classId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	applicants, pagination, err := h.applicants.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicants, pagination)
}

// Get godoc
// @Summary Get applicant detail
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, err := h.applicants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Register godoc
// @Summary Register a new applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body service.RegisterApplicantRequest true "Applicant payload"
// @Success 201 {object} response.Envelope
// @Router /applicants [post]
func (h *ApplicantHandler) Register(c *gin.Context) {
	var req service.RegisterApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, applicant)
}

// RecordScore godoc
// @Summary Record the entrance exam score
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body service.ScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/score [put]
func (h *ApplicantHandler) RecordScore(c *gin.Context) {
	var req service.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.RecordScore(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// Triage godoc
// @Summary Assign the applicant to a target class
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body service.TriageRequest true "Placement payload"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/triage [put]
func (h *ApplicantHandler) Triage(c *gin.Context) {
	var req service.TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.Triage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}
