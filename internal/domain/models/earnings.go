package models

import (
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripEarning is one completed trip's contribution to the daily total.
type TripEarning struct {
	DriverID      uuid.UUID       `json:"driver_id"`
	FranchiseID   uuid.UUID       `json:"franchise_id"`
	SourceEventID string          `json:"source_event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Amount        decimal.Decimal `json:"amount"`
}

// DailyLimitState tracks earnings against the daily target for one driver and one calendar day.
type DailyLimitState struct {
	DriverID    uuid.UUID       `json:"driver_id"`
	FranchiseID uuid.UUID       `json:"franchise_id"`
	Date        time.Time       `json:"date"`
	Target      decimal.Decimal `json:"target"`
	EarnedSoFar decimal.Decimal `json:"earned_so_far"`
	TripCount   int             `json:"trip_count"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updated_at,omitzero"`
}

// Remaining is max(0, target - earnedSoFar).
func (s DailyLimitState) Remaining() decimal.Decimal {
	r := s.Target.Sub(s.EarnedSoFar)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

type IncentiveTier1 struct {
	Min     decimal.Decimal     `json:"min" yaml:"min"`
	Max     decimal.Decimal     `json:"max" yaml:"max"`
	Type    types.IncentiveType `json:"type" yaml:"type"`
	Percent decimal.Decimal     `json:"percent" yaml:"percent"`
}

type IncentiveTier2 struct {
	Min     decimal.Decimal `json:"min" yaml:"min"`
	Percent decimal.Decimal `json:"percent" yaml:"percent"`
}

type BonusTier struct {
	MinEarnings decimal.Decimal `json:"min_earnings" yaml:"min_earnings"`
	Bonus       decimal.Decimal `json:"bonus" yaml:"bonus"`
}

type DeductionTier struct {
	MaxEarnings decimal.Decimal `json:"max_earnings" yaml:"max_earnings"`
	CutPercent  decimal.Decimal `json:"cut_percent" yaml:"cut_percent"`
}

// EarningsConfig is one scope's earnings policy. Percent values are in [0,100].
type EarningsConfig struct {
	ID                    uuid.UUID         `json:"id"`
	Scope                 types.ConfigScope `json:"scope"`
	ScopeID               *uuid.UUID        `json:"scope_id,omitempty"`
	Timezone              string            `json:"timezone"`
	DailyTarget           decimal.Decimal   `json:"daily_target"`
	Tier1                 *IncentiveTier1   `json:"incentive_tier1,omitempty"`
	Tier2                 *IncentiveTier2   `json:"incentive_tier2,omitempty"`
	MonthlyBonusTiers     []BonusTier       `json:"monthly_bonus_tiers"`
	MonthlyDeductionTiers []DeductionTier   `json:"monthly_deduction_tiers"`
	UpdatedAt             time.Time         `json:"updated_at,omitzero"`
}

// Location returns the config time zone, UTC when unset or unknown.
func (c EarningsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Day truncates t to the calendar day in loc. The result is midnight UTC of that date.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyEarnings is the daily state with the incentive it currently earns.
type DailyEarnings struct {
	State     DailyLimitState `json:"state"`
	Remaining decimal.Decimal `json:"remaining"`
	Incentive decimal.Decimal `json:"incentive"`
	ConfigID  uuid.UUID       `json:"config_id"`
}

// MonthlySettlement is the persisted month-end payout of one driver.
type MonthlySettlement struct {
	DriverID         uuid.UUID       `json:"driver_id"`
	FranchiseID      uuid.UUID       `json:"franchise_id"`
	Month            string          `json:"month"`
	MonthlyEarnings  decimal.Decimal `json:"monthly_earnings"`
	IncentiveTotal   decimal.Decimal `json:"incentive_total"`
	Bonus            decimal.Decimal `json:"bonus"`
	DeductionPercent decimal.Decimal `json:"deduction_percent"`
	DeductionAmount  decimal.Decimal `json:"deduction_amount"`
	NetPayout        decimal.Decimal `json:"net_payout"`
	ConfigID         uuid.UUID       `json:"config_id"`
	ArchiveKey       string          `json:"archive_key,omitempty"`
	SettledAt        time.Time       `json:"settled_at"`
}

// DriverMonth identifies a driver with earnings in a month.
type DriverMonth struct {
	DriverID    uuid.UUID
	FranchiseID uuid.UUID
}
