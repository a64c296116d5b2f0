package memory

import (
	"context"
	"sync"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
)

type PerformanceStore struct {
	mu      sync.RWMutex
	metrics map[uuid.UUID]models.PerformanceMetrics
}

func NewPerformanceStore() *PerformanceStore {
	return &PerformanceStore{metrics: map[uuid.UUID]models.PerformanceMetrics{}}
}

func (s *PerformanceStore) Get(ctx context.Context, driverID uuid.UUID) (models.PerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[driverID]
	if !ok {
		return models.PerformanceMetrics{}, types.ErrNotFound
	}
	return m, nil
}

func (s *PerformanceStore) GetMany(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.PerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.PerformanceMetrics, len(driverIDs))
	for _, id := range driverIDs {
		if m, ok := s.metrics[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *PerformanceStore) Save(ctx context.Context, m models.PerformanceMetrics, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(s.metrics[m.DriverID].Version, expectedVersion, hasKey(s.metrics, m.DriverID)); err != nil {
		return err
	}
	s.metrics[m.DriverID] = m
	return nil
}

func hasKey[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}

// checkVersion implements insert-on-zero and compare-and-swap semantics.
func checkVersion(stored, expected int64, exists bool) error {
	if expected == 0 {
		if exists {
			return types.ErrConflict
		}
		return nil
	}
	if !exists || stored != expected {
		return types.ErrConflict
	}
	return nil
}
