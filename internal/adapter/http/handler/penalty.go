package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
	"github.com/google/uuid"
)

type PenaltyService interface {
	EvaluatePenaltyEvent(ctx context.Context, ev models.DriverEvent) (models.EvaluationResult, error)
	ApplyManual(ctx context.Context, mp models.ManualPenalty) (models.EvaluationResult, error)
	ListPenalties(ctx context.Context, driverID uuid.UUID) (models.DriverPenalties, error)
}

type Penalty struct {
	service PenaltyService
	now     func() time.Time
	l       logger.Logger
}

func NewPenalty(service PenaltyService, l logger.Logger) *Penalty {
	return &Penalty{service: service, now: time.Now, l: l}
}

// EvaluateEvent godoc
// @Summary      Evaluate a driver event
// @Description  Runs a trip, attendance or complaint event through the active penalty rules. 202 means penalties were recorded but the registry block is still pending.
// @Tags         Penalties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  dto.PenaltyEventRequest  true  "Event with its kind"
// @Success      200  {object}  map[string]models.EvaluationResult
// @Success      202  {object}  map[string]models.EvaluationResult
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /penalties/events [post]
func (h *Penalty) EvaluateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionPenaltyEvaluated)

	var req dto.PenaltyEventRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	ev, err := req.Decode()
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, ev.EventDriverID().String())

	res, err := h.service.EvaluatePenaltyEvent(ctx, ev)
	h.writeResult(ctx, w, res, err, "failed to evaluate penalty event")
}

// ApplyManual godoc
// @Summary      Apply a manual penalty
// @Description  Records a staff penalty against a driver. The actor is taken from the token, a source event id is generated when absent.
// @Tags         Penalties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id  path  string                    true  "Driver ID"
// @Param        request    body  dto.ManualPenaltyRequest  true  "Manual penalty"
// @Success      200  {object}  map[string]models.EvaluationResult
// @Success      202  {object}  map[string]models.EvaluationResult
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /drivers/{driver_id}/penalties [post]
func (h *Penalty) ApplyManual(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionPenaltyApplied)

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	var req dto.ManualPenaltyRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	res, err := h.service.ApplyManual(ctx, req.ToModel(driverID, caller(r).ID, h.now()))
	h.writeResult(ctx, w, res, err, "failed to apply manual penalty")
}

// ListPenalties godoc
// @Summary      Driver penalties
// @Description  Returns the penalty history of a driver, newest first, with the current penalty state.
// @Tags         Penalties
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id  path  string  true  "Driver ID"
// @Success      200  {object}  map[string]models.DriverPenalties
// @Failure      400  {object}  map[string]string
// @Router       /drivers/{driver_id}/penalties [get]
func (h *Penalty) ListPenalties(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_penalties")

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	penalties, err := h.service.ListPenalties(ctx, driverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list penalties", err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"penalties": penalties}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}

// writeResult answers 202 when the penalties are stored but the registry
// block has not gone through yet.
func (h *Penalty) writeResult(ctx context.Context, w http.ResponseWriter, res models.EvaluationResult, err error, msg string) {
	status := http.StatusOK
	env := envelope{"result": res}

	switch {
	case errors.Is(err, types.ErrBlockFailed):
		h.l.Warn(wrap.ErrorCtx(ctx, err), "registry block pending", "error", err.Error())
		status = http.StatusAccepted
		env["warning"] = "driver block is pending registry confirmation"
	case err != nil:
		h.l.Error(wrap.ErrorCtx(ctx, err), msg, err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, status, env, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}
