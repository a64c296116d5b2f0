package dispatch

import (
	"context"
	"math"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
)

const EarthRadiusKm = 6371.0

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistance returns the great-circle distance between two points in km.
func HaversineDistance(from, to models.Location) float64 {
	lat1Rad := degreesToRadians(from.Latitude)
	lon1Rad := degreesToRadians(from.Longitude)
	lat2Rad := degreesToRadians(to.Latitude)
	lon2Rad := degreesToRadians(to.Longitude)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Pow(math.Sin(deltaLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Haversine is a DistanceLookup that never leaves the process.
type Haversine struct{}

func (Haversine) Distance(ctx context.Context, from, to models.Location) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return HaversineDistance(from, to), nil
}
