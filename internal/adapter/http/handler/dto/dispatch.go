package dto

import (
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/validator"
	"github.com/google/uuid"
)

const maxRankLimit = 100

type RankRequest struct {
	TripID       uuid.UUID          `json:"trip_id"`
	FranchiseID  *uuid.UUID         `json:"franchise_id,omitempty"`
	VehicleClass types.VehicleClass `json:"vehicle_class"`
	Pickup       LocationDTO        `json:"pickup"`
	Limit        int                `json:"limit,omitempty"`
}

type LocationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r *RankRequest) Validate(v *validator.Validator) {
	v.Check(r.TripID != uuid.Nil, "trip_id", "must be provided")
	v.Check(r.VehicleClass == "" || r.VehicleClass.Valid(), "vehicle_class", "must be one of ECONOMY, PREMIUM, XL")
	v.Check(r.Pickup.Latitude >= -90 && r.Pickup.Latitude <= 90, "pickup.latitude", "must be between -90 and 90")
	v.Check(r.Pickup.Longitude >= -180 && r.Pickup.Longitude <= 180, "pickup.longitude", "must be between -180 and 180")
	v.Check(r.Limit >= 0 && r.Limit <= maxRankLimit, "limit", "must be between 0 and 100")
}

// ToModel builds the trip request. A missing franchise falls back to the
// caller's franchise.
func (r *RankRequest) ToModel(callerFranchise *uuid.UUID) models.TripRequest {
	franchise := r.FranchiseID
	if franchise == nil {
		franchise = callerFranchise
	}
	return models.TripRequest{
		TripID:       r.TripID,
		FranchiseID:  franchise,
		VehicleClass: r.VehicleClass,
		Pickup:       models.Location{Latitude: r.Pickup.Latitude, Longitude: r.Pickup.Longitude},
		Limit:        r.Limit,
	}
}

type RankResponse struct {
	TripID     uuid.UUID                  `json:"trip_id"`
	Candidates []models.DispatchCandidate `json:"candidates"`
}
