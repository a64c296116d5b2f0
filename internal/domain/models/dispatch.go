package models

import (
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TripRequest is a pending trip that needs a driver.
type TripRequest struct {
	TripID       uuid.UUID          `json:"trip_id"`
	FranchiseID  *uuid.UUID         `json:"franchise_id,omitempty"`
	VehicleClass types.VehicleClass `json:"vehicle_class"`
	Pickup       Location           `json:"pickup"`
	Limit        int                `json:"limit,omitempty"`
}

// DriverRecord is the registry view of a driver joined with today's attendance.
type DriverRecord struct {
	DriverID         uuid.UUID
	FranchiseID      uuid.UUID
	Status           types.DriverStatus
	Banned           bool
	VehicleClass     types.VehicleClass
	ActiveTrips      int
	CheckedIn        bool
	CheckedInAt      *time.Time
	AttendanceStatus types.AttendanceStatus
	Location         *Location
}

// DriverSnapshot is everything the ranker needs about one driver.
type DriverSnapshot struct {
	DriverRecord

	PenaltyState        types.PenaltyState
	Category            types.Category
	RemainingDailyLimit decimal.Decimal
	DistanceKm          *float64
}

// DispatchCandidate is one ranked entry. Ephemeral, never persisted.
type DispatchCandidate struct {
	DriverID            uuid.UUID              `json:"driver_id"`
	VehicleMatch        bool                   `json:"vehicle_match"`
	DistanceKm          *float64               `json:"distance_km"`
	PerformanceCategory types.Category         `json:"performance_category"`
	RemainingDailyLimit decimal.Decimal        `json:"remaining_daily_limit"`
	CheckedIn           bool                   `json:"checked_in"`
	AttendanceStatus    types.AttendanceStatus `json:"attendance_status"`
	Eligible            bool                   `json:"eligible"`
	LimitExhausted      bool                   `json:"limit_exhausted"`
	CompositeScore      float64                `json:"composite_score"`
	ActiveTrips         int                    `json:"active_trips"`
	CheckedInAt         *time.Time             `json:"checked_in_at,omitempty"`
}
