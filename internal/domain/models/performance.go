package models

import (
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
)

// PerformanceStats is the scorer input.
type PerformanceStats struct {
	TotalTrips     int      `json:"total_trips"`
	CompletedTrips int      `json:"completed_trips"`
	RejectedTrips  int      `json:"rejected_trips"`
	ComplaintCount int      `json:"complaint_count"`
	Rating         *float64 `json:"rating,omitempty"`
}

// PerformanceMetrics holds cumulative counters of a driver and the score derived from them.
type PerformanceMetrics struct {
	DriverID       uuid.UUID      `json:"driver_id"`
	TotalTrips     int            `json:"total_trips"`
	CompletedTrips int            `json:"completed_trips"`
	RejectedTrips  int            `json:"rejected_trips"`
	CancelledTrips int            `json:"cancelled_trips"`
	ComplaintCount int            `json:"complaint_count"`
	RatingSum      float64        `json:"-"`
	RatingCount    int            `json:"rating_count"`
	Rating         *float64       `json:"rating"`
	CompletionRate float64        `json:"completion_rate"`
	RejectionRate  float64        `json:"rejection_rate"`
	Score          int            `json:"score"`
	Category       types.Category `json:"category"`
	Version        int64          `json:"version"`
	UpdatedAt      time.Time      `json:"updated_at,omitzero"`
}

// Stats converts the counters into scorer input.
func (m PerformanceMetrics) Stats() PerformanceStats {
	s := PerformanceStats{
		TotalTrips:     m.TotalTrips,
		CompletedTrips: m.CompletedTrips,
		RejectedTrips:  m.RejectedTrips,
		ComplaintCount: m.ComplaintCount,
	}
	if m.RatingCount > 0 {
		avg := m.RatingSum / float64(m.RatingCount)
		s.Rating = &avg
	}
	return s
}

// Recompute refreshes derived rates and the average rating from counters.
func (m *PerformanceMetrics) Recompute() {
	m.CompletionRate, m.RejectionRate = 0, 0
	if m.TotalTrips > 0 {
		m.CompletionRate = float64(m.CompletedTrips) / float64(m.TotalTrips)
		m.RejectionRate = float64(m.RejectedTrips) / float64(m.TotalTrips)
	}
	m.Rating = m.Stats().Rating
}
