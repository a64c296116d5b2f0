package performance

import (
	"fmt"
	"math"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
)

// Weights of the four score terms. They need not sum to 1, the weighted
// mean is normalised by the weights of the terms that are present.
type Weights struct {
	Completion float64
	Acceptance float64
	Rating     float64
	Complaints float64
}

// Thresholds map a score to a category: >= Green is GREEN, >= Yellow is YELLOW, else RED.
type Thresholds struct {
	Green  int
	Yellow int
}

var (
	DefaultWeights    = Weights{Completion: 0.40, Acceptance: 0.30, Rating: 0.20, Complaints: 0.10}
	DefaultThresholds = Thresholds{Green: 80, Yellow: 50}
)

// NeutralScore is given to drivers without trips.
const NeutralScore = 70

// Scorer turns performance stats into a 0-100 score and a category. Pure.
type Scorer struct {
	weights      Weights
	thresholds   Thresholds
	neutralScore int
}

func NewScorer(w Weights, t Thresholds, neutralScore int) (*Scorer, error) {
	for _, v := range []float64{w.Completion, w.Acceptance, w.Rating, w.Complaints} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: scoring weights must be finite and non-negative", types.ErrConfiguration)
		}
	}
	if w.Completion+w.Acceptance+w.Complaints <= 0 {
		return nil, fmt.Errorf("%w: at least one rating-independent weight must be positive", types.ErrConfiguration)
	}
	if !(0 <= t.Yellow && t.Yellow < t.Green && t.Green <= 100) {
		return nil, fmt.Errorf("%w: thresholds must satisfy 0 <= yellow < green <= 100", types.ErrConfiguration)
	}
	if neutralScore < 0 || neutralScore > 100 {
		return nil, fmt.Errorf("%w: neutral score must be within [0,100]", types.ErrConfiguration)
	}

	return &Scorer{weights: w, thresholds: t, neutralScore: neutralScore}, nil
}

// MustDefaultScorer is the scorer with documented defaults.
func MustDefaultScorer() *Scorer {
	s, err := NewScorer(DefaultWeights, DefaultThresholds, NeutralScore)
	if err != nil {
		panic(err)
	}
	return s
}

// Score computes score and category. Zero trips yield the neutral score.
func (s *Scorer) Score(stats models.PerformanceStats) (int, types.Category, error) {
	if err := ValidateStats(stats); err != nil {
		return 0, "", err
	}

	if stats.TotalTrips == 0 {
		return s.neutralScore, s.Categorize(s.neutralScore), nil
	}

	total := float64(stats.TotalTrips)
	completion := float64(stats.CompletedTrips) / total
	acceptance := 1 - float64(stats.RejectedTrips)/total
	complaints := 1 / (1 + float64(stats.ComplaintCount))

	sum := s.weights.Completion*completion + s.weights.Acceptance*acceptance + s.weights.Complaints*complaints
	weight := s.weights.Completion + s.weights.Acceptance + s.weights.Complaints
	if stats.Rating != nil {
		sum += s.weights.Rating * (*stats.Rating / 5)
		weight += s.weights.Rating
	}

	score := int(math.Round(100 * sum / weight))
	score = max(0, min(100, score))

	return score, s.Categorize(score), nil
}

// Categorize is monotonic: a higher score never maps to a worse category.
func (s *Scorer) Categorize(score int) types.Category {
	switch {
	case score >= s.thresholds.Green:
		return types.CategoryGreen
	case score >= s.thresholds.Yellow:
		return types.CategoryYellow
	default:
		return types.CategoryRed
	}
}

// NeutralCategory is the category of a driver without history.
func (s *Scorer) NeutralCategory() types.Category {
	return s.Categorize(s.neutralScore)
}

func (s *Scorer) NeutralScore() int {
	return s.neutralScore
}

// ValidateStats rejects contradictory snapshots instead of correcting them.
func ValidateStats(stats models.PerformanceStats) error {
	switch {
	case stats.TotalTrips < 0, stats.CompletedTrips < 0, stats.RejectedTrips < 0, stats.ComplaintCount < 0:
		return fmt.Errorf("%w: counts must not be negative", types.ErrInvalidInput)
	case stats.TotalTrips < stats.CompletedTrips+stats.RejectedTrips:
		return fmt.Errorf("%w: total trips %d is less than completed %d plus rejected %d",
			types.ErrInvalidInput, stats.TotalTrips, stats.CompletedTrips, stats.RejectedTrips)
	case stats.Rating != nil && (math.IsNaN(*stats.Rating) || *stats.Rating < 0 || *stats.Rating > 5):
		return fmt.Errorf("%w: rating %v is outside [0,5]", types.ErrInvalidInput, *stats.Rating)
	}
	return nil
}
