package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/service"
	"github.com/noah-isme/admission-api/pkg/response"
)

// AcademicYearHandler exposes academic year and category lookups.
type AcademicYearHandler struct {
	years *service.AcademicYearService
}

// NewAcademicYearHandler constructs AcademicYearHandler.
func NewAcademicYearHandler(years *service.AcademicYearService) *AcademicYearHandler {
	return &AcademicYearHandler{years: years}
}

// List godoc
// @Summary List academic years
// @Tags AcademicYears
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *AcademicYearHandler) List(c *gin.Context) {
	years, err := h.years.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Active godoc
// @Summary Get the active academic year
// @Tags AcademicYears
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academic-years/active [get]
func (h *AcademicYearHandler) Active(c *gin.Context) {
	year, err := h.years.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// Categories godoc
// @Summary List applicant categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *AcademicYearHandler) Categories(c *gin.Context) {
	categories, err := h.years.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}
