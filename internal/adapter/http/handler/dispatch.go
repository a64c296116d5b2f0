package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/driver-engine/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
)

type DispatchService interface {
	RankCandidates(ctx context.Context, trip models.TripRequest) ([]models.DispatchCandidate, error)
}

type Dispatch struct {
	service DispatchService
	l       logger.Logger
}

func NewDispatch(service DispatchService, l logger.Logger) *Dispatch {
	return &Dispatch{service: service, l: l}
}

// RankCandidates godoc
// @Summary      Rank dispatch candidates
// @Description  Returns the eligible drivers for a trip ordered best first. The franchise defaults to the caller's franchise.
// @Tags         Dispatch
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  dto.RankRequest  true  "Trip to dispatch"
// @Success      200  {object}  dto.RankResponse
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /dispatch/rank [post]
func (h *Dispatch) RankCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "rank_candidates")

	var req dto.RankRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	trip := req.ToModel(caller(r).FranchiseID)
	candidates, err := h.service.RankCandidates(ctx, trip)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to rank candidates", err)
		serviceErrorResponse(w, err)
		return
	}
	if candidates == nil {
		candidates = []models.DispatchCandidate{}
	}

	resp := envelope{"trip_id": trip.TripID, "candidates": candidates}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}
