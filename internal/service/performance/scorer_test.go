package performance

import (
	"testing"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestScorer_Score(t *testing.T) {
	s := MustDefaultScorer()

	tests := []struct {
		name     string
		stats    models.PerformanceStats
		score    int
		category types.Category
	}{
		{
			name:     "zero trips is neutral",
			stats:    models.PerformanceStats{},
			score:    70,
			category: types.CategoryYellow,
		},
		{
			name:     "perfect driver",
			stats:    models.PerformanceStats{TotalTrips: 20, CompletedTrips: 20, Rating: ptr(5.0)},
			score:    100,
			category: types.CategoryGreen,
		},
		{
			name:     "good driver",
			stats:    models.PerformanceStats{TotalTrips: 10, CompletedTrips: 8, RejectedTrips: 1, ComplaintCount: 1, Rating: ptr(4.5)},
			score:    82,
			category: types.CategoryGreen,
		},
		{
			name:     "average driver",
			stats:    models.PerformanceStats{TotalTrips: 10, CompletedTrips: 6, RejectedTrips: 2, ComplaintCount: 1, Rating: ptr(4.0)},
			score:    69,
			category: types.CategoryYellow,
		},
		{
			name:     "no rating renormalises weights",
			stats:    models.PerformanceStats{TotalTrips: 10, CompletedTrips: 5, RejectedTrips: 5, ComplaintCount: 2},
			score:    48,
			category: types.CategoryRed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, category, err := s.Score(tt.stats)
			require.NoError(t, err)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestScorer_ScoreStaysInRange(t *testing.T) {
	s := MustDefaultScorer()

	for total := 1; total <= 12; total++ {
		for completed := 0; completed <= total; completed++ {
			for rejected := 0; completed+rejected <= total; rejected++ {
				for _, complaints := range []int{0, 1, 5, 100} {
					stats := models.PerformanceStats{
						TotalTrips:     total,
						CompletedTrips: completed,
						RejectedTrips:  rejected,
						ComplaintCount: complaints,
						Rating:         ptr(float64(completed%6) * 5 / 5),
					}
					score, category, err := s.Score(stats)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, score, 0)
					assert.LessOrEqual(t, score, 100)
					assert.Equal(t, s.Categorize(score), category)
				}
			}
		}
	}
}

func TestScorer_CategorizeIsMonotonic(t *testing.T) {
	s := MustDefaultScorer()
	rank := map[types.Category]int{types.CategoryRed: 0, types.CategoryYellow: 1, types.CategoryGreen: 2}

	prev := rank[s.Categorize(0)]
	for score := 1; score <= 100; score++ {
		cur := rank[s.Categorize(score)]
		assert.GreaterOrEqual(t, cur, prev, "score %d", score)
		prev = cur
	}
	assert.Equal(t, types.CategoryYellow, s.Categorize(50))
	assert.Equal(t, types.CategoryRed, s.Categorize(49))
	assert.Equal(t, types.CategoryGreen, s.Categorize(80))
}

func TestScorer_InvalidInput(t *testing.T) {
	s := MustDefaultScorer()

	tests := []struct {
		name  string
		stats models.PerformanceStats
	}{
		{"negative count", models.PerformanceStats{TotalTrips: -1}},
		{"negative complaints", models.PerformanceStats{TotalTrips: 1, ComplaintCount: -2}},
		{"total below completed plus rejected", models.PerformanceStats{TotalTrips: 5, CompletedTrips: 4, RejectedTrips: 2}},
		{"rating above five", models.PerformanceStats{TotalTrips: 1, CompletedTrips: 1, Rating: ptr(5.5)}},
		{"negative rating", models.PerformanceStats{TotalTrips: 1, Rating: ptr(-1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Score(tt.stats)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestNewScorer_Configuration(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
		th   Thresholds
	}{
		{"negative weight", Weights{Completion: -1, Acceptance: 1}, DefaultThresholds},
		{"only rating weight", Weights{Rating: 1}, DefaultThresholds},
		{"thresholds out of order", DefaultWeights, Thresholds{Green: 50, Yellow: 80}},
		{"green above hundred", DefaultWeights, Thresholds{Green: 101, Yellow: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.w, tt.th, NeutralScore)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}
