package dto

import (
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TripEarningRequest struct {
	FranchiseID   uuid.UUID       `json:"franchise_id"`
	SourceEventID string          `json:"source_event_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    *time.Time      `json:"occurred_at,omitempty"`
}

func (r *TripEarningRequest) Validate(v *validator.Validator) {
	v.Check(r.FranchiseID != uuid.Nil, "franchise_id", "must be provided")
	v.Check(r.SourceEventID != "", "source_event_id", "must be provided")
	v.Check(len(r.SourceEventID) <= 128, "source_event_id", "must not be more than 128 characters")
	v.Check(r.Amount.IsPositive(), "amount", "must be positive")
}

// ToModel defaults the trip time to now.
func (r *TripEarningRequest) ToModel(driverID uuid.UUID, now time.Time) models.TripEarning {
	occurredAt := now
	if r.OccurredAt != nil {
		occurredAt = *r.OccurredAt
	}
	return models.TripEarning{
		DriverID:      driverID,
		FranchiseID:   r.FranchiseID,
		SourceEventID: r.SourceEventID,
		OccurredAt:    occurredAt,
		Amount:        r.Amount,
	}
}

type SettlementPreviewRequest struct {
	MonthlyEarnings decimal.Decimal `json:"monthly_earnings"`
	DriverID        *uuid.UUID      `json:"driver_id,omitempty"`
	FranchiseID     *uuid.UUID      `json:"franchise_id,omitempty"`
}

func (r *SettlementPreviewRequest) Validate(v *validator.Validator) {
	v.Check(!r.MonthlyEarnings.IsNegative(), "monthly_earnings", "must not be negative")
}

// Scope returns the ids used to resolve the effective config, uuid.Nil for
// the unset ones.
func (r *SettlementPreviewRequest) Scope() (driverID, franchiseID uuid.UUID) {
	if r.DriverID != nil {
		driverID = *r.DriverID
	}
	if r.FranchiseID != nil {
		franchiseID = *r.FranchiseID
	}
	return driverID, franchiseID
}

type SettlementPreviewResponse struct {
	MonthlyEarnings  decimal.Decimal `json:"monthly_earnings"`
	Bonus            decimal.Decimal `json:"bonus"`
	DeductionPercent decimal.Decimal `json:"deduction_percent"`
	DeductionAmount  decimal.Decimal `json:"deduction_amount"`
	ConfigID         uuid.UUID       `json:"config_id"`
}

func NewSettlementPreview(earnings, bonus, cut decimal.Decimal, configID uuid.UUID) SettlementPreviewResponse {
	return SettlementPreviewResponse{
		MonthlyEarnings:  earnings,
		Bonus:            bonus,
		DeductionPercent: cut,
		DeductionAmount:  earnings.Mul(cut).Div(decimal.NewFromInt(100)).Round(2),
		ConfigID:         configID,
	}
}
