package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/dto"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

// RolloverHandler exposes the year-end promotion endpoint.
type RolloverHandler struct {
	rollover *service.RolloverService
}

// NewRolloverHandler constructs RolloverHandler.
func NewRolloverHandler(rollover *service.RolloverService) *RolloverHandler {
	return &RolloverHandler{rollover: rollover}
}

// Rollover godoc
// @Summary Promote a year cohort into the next academic year
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body dto.RolloverRequest true "Rollover payload"
// @Success 200 {object} response.Envelope
// @Router /promotions/rollover [post]
func (h *RolloverHandler) Rollover(c *gin.Context) {
	var req dto.RolloverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.rollover.RolloverYear(c.Request.Context(), req.SourceYearID, req.TargetYearID, req.Mapping)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
