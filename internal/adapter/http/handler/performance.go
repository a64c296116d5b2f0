package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/google/uuid"
)

type PerformanceService interface {
	GetPerformance(ctx context.Context, driverID uuid.UUID) (models.PerformanceMetrics, error)
}

type Performance struct {
	service PerformanceService
	l       logger.Logger
}

func NewPerformance(service PerformanceService, l logger.Logger) *Performance {
	return &Performance{service: service, l: l}
}

// GetPerformance godoc
// @Summary      Driver performance
// @Description  Returns cumulative counters, score and category of a driver. Drivers without history get the neutral defaults.
// @Tags         Performance
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id  path  string  true  "Driver ID"
// @Success      200  {object}  map[string]models.PerformanceMetrics
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /drivers/{driver_id}/performance [get]
func (h *Performance) GetPerformance(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_performance")

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	metrics, err := h.service.GetPerformance(ctx, driverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get performance", err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"performance": metrics}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}
