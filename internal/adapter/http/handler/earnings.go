package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EarningsService interface {
	ApplyTripEarning(ctx context.Context, te models.TripEarning) (models.DailyLimitState, error)
	GetDailyState(ctx context.Context, driverID, franchiseID uuid.UUID, day time.Time) (models.DailyEarnings, error)
	EffectiveConfig(ctx context.Context, driverID, franchiseID uuid.UUID) (models.EarningsConfig, error)
	ComputeMonthlySettlement(ctx context.Context, monthlyEarnings decimal.Decimal, cfg models.EarningsConfig) (decimal.Decimal, decimal.Decimal, error)
	SettleMonth(ctx context.Context, driverID, franchiseID uuid.UUID, month string) (models.MonthlySettlement, error)
}

type Earnings struct {
	service EarningsService
	now     func() time.Time
	l       logger.Logger
}

func NewEarnings(service EarningsService, l logger.Logger) *Earnings {
	return &Earnings{service: service, now: time.Now, l: l}
}

// ApplyTripEarning godoc
// @Summary      Record a trip earning
// @Description  Adds a completed trip's amount to the driver's daily state. Repeating a source event id is a no-op.
// @Tags         Earnings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id  path  string                  true  "Driver ID"
// @Param        request    body  dto.TripEarningRequest  true  "Trip earning"
// @Success      200  {object}  map[string]models.DailyLimitState
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /drivers/{driver_id}/earnings [post]
func (h *Earnings) ApplyTripEarning(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionTripEarning)

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	var req dto.TripEarningRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	state, err := h.service.ApplyTripEarning(ctx, req.ToModel(driverID, h.now()))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to apply trip earning", err)
		serviceErrorResponse(w, err)
		return
	}

	resp := envelope{"state": state, "remaining": state.Remaining()}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}

// GetDailyEarnings godoc
// @Summary      Daily earnings state
// @Description  Returns the driver's state of one day with the incentive it currently earns. Drivers may only read their own state.
// @Tags         Earnings
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id     path   string  true   "Driver ID"
// @Param        date          query  string  false  "Day in YYYY-MM-DD, defaults to today"
// @Param        franchise_id  query  string  false  "Franchise whose config applies"
// @Success      200  {object}  map[string]models.DailyEarnings
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /drivers/{driver_id}/earnings/daily [get]
func (h *Earnings) GetDailyEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_daily_earnings")

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	user := caller(r)
	if user.Role == types.DriverRole && user.ID != driverID {
		h.l.Warn(ctx, "driver requested foreign earnings", "caller", user.ID.String())
		notPermittedResponse(w)
		return
	}

	day, err := readDate(r, "date")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	franchise, err := readOptionalUUID(r, "franchise_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	if franchise == nil {
		franchise = user.FranchiseID
	}
	franchiseID := uuid.Nil
	if franchise != nil {
		franchiseID = *franchise
	}

	// today is the driver's local date under the effective config
	if day.IsZero() {
		cfg, err := h.service.EffectiveConfig(ctx, driverID, franchiseID)
		if err != nil {
			h.l.Error(wrap.ErrorCtx(ctx, err), "failed to resolve earnings config", err)
			serviceErrorResponse(w, err)
			return
		}
		day = models.Day(h.now(), cfg.Location())
	}

	daily, err := h.service.GetDailyState(ctx, driverID, franchiseID, day)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get daily earnings", err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"daily": daily}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}

// PreviewSettlement godoc
// @Summary      Preview a monthly settlement
// @Description  Computes the bonus and deduction for a monthly earnings amount under the effective config. Nothing is stored.
// @Tags         Earnings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body  dto.SettlementPreviewRequest  true  "Monthly earnings"
// @Success      200  {object}  map[string]dto.SettlementPreviewResponse
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /earnings/settlement/preview [post]
func (h *Earnings) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "preview_settlement")

	var req dto.SettlementPreviewRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	driverID, franchiseID := req.Scope()
	if franchiseID == uuid.Nil && caller(r).FranchiseID != nil {
		franchiseID = *caller(r).FranchiseID
	}

	cfg, err := h.service.EffectiveConfig(ctx, driverID, franchiseID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to resolve earnings config", err)
		serviceErrorResponse(w, err)
		return
	}

	bonus, cut, err := h.service.ComputeMonthlySettlement(ctx, req.MonthlyEarnings, cfg)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to compute settlement", err)
		serviceErrorResponse(w, err)
		return
	}

	preview := dto.NewSettlementPreview(req.MonthlyEarnings, bonus, cut, cfg.ID)
	if err := writeJSON(w, http.StatusOK, envelope{"settlement": preview}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}

// SettleMonth godoc
// @Summary      Settle a finished month
// @Description  Computes and stores the month-end payout of a driver. Settling again returns the stored settlement.
// @Tags         Earnings
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id     path   string  true   "Driver ID"
// @Param        month         path   string  true   "Month in YYYY-MM"
// @Param        franchise_id  query  string  false  "Franchise whose config applies"
// @Success      200  {object}  map[string]models.MonthlySettlement
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /drivers/{driver_id}/settlements/{month} [post]
func (h *Earnings) SettleMonth(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), types.ActionMonthSettled)

	driverID, err := readUUIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	month := r.PathValue("month")
	v := validator.New()
	if v.Check(validator.Matches(month, validator.MonthRX), "month", "must be in YYYY-MM format"); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	franchise, err := readOptionalUUID(r, "franchise_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	franchiseID := uuid.Nil
	if franchise != nil {
		franchiseID = *franchise
	}

	settlement, err := h.service.SettleMonth(ctx, driverID, franchiseID, month)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to settle month", err)
		serviceErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"settlement": settlement}, nil); err != nil {
		h.l.Error(ctx, "failed to write response", err)
	}
}
