package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/google/uuid"
)

type dayKey struct {
	driverID uuid.UUID
	day      time.Time
}

type DailyLimitStore struct {
	mu     sync.RWMutex
	states map[dayKey]models.DailyLimitState
}

func NewDailyLimitStore() *DailyLimitStore {
	return &DailyLimitStore{states: map[dayKey]models.DailyLimitState{}}
}

func (s *DailyLimitStore) Get(ctx context.Context, driverID uuid.UUID, day time.Time) (models.DailyLimitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[dayKey{driverID, day.UTC()}]
	if !ok {
		return models.DailyLimitState{}, types.ErrNotFound
	}
	return st, nil
}

func (s *DailyLimitStore) GetMany(ctx context.Context, driverIDs []uuid.UUID, day time.Time) (map[uuid.UUID]models.DailyLimitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.DailyLimitState, len(driverIDs))
	for _, id := range driverIDs {
		if st, ok := s.states[dayKey{id, day.UTC()}]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (s *DailyLimitStore) Save(ctx context.Context, st models.DailyLimitState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey{st.DriverID, st.Date.UTC()}
	current, ok := s.states[key]
	if err := checkVersion(current.Version, expectedVersion, ok); err != nil {
		return err
	}
	s.states[key] = st
	return nil
}

func (s *DailyLimitStore) ListRange(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]models.DailyLimitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyLimitState
	for k, st := range s.states {
		if k.driverID == driverID && !k.day.Before(from) && k.day.Before(to) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *DailyLimitStore) DriversWithEarnings(ctx context.Context, from, to time.Time) ([]models.DriverMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[uuid.UUID]uuid.UUID{}
	for k, st := range s.states {
		if !k.day.Before(from) && k.day.Before(to) {
			seen[k.driverID] = st.FranchiseID
		}
	}
	out := make([]models.DriverMonth, 0, len(seen))
	for d, f := range seen {
		out = append(out, models.DriverMonth{DriverID: d, FranchiseID: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID.String() < out[j].DriverID.String() })
	return out, nil
}

type configKey struct {
	scope   types.ConfigScope
	scopeID uuid.UUID
}

type ConfigStore struct {
	mu      sync.RWMutex
	configs map[configKey]models.EarningsConfig
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: map[configKey]models.EarningsConfig{}}
}

// Put stores cfg under its scope. Scoped configs must carry a ScopeID.
func (s *ConfigStore) Put(cfg models.EarningsConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id uuid.UUID
	if cfg.ScopeID != nil {
		id = *cfg.ScopeID
	}
	s.configs[configKey{cfg.Scope, id}] = cfg
}

func (s *ConfigStore) Find(ctx context.Context, scope types.ConfigScope, scopeID uuid.UUID) (*models.EarningsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configKey{scope, scopeID}]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

type settlementKey struct {
	driverID uuid.UUID
	month    string
}

type SettlementStore struct {
	mu          sync.RWMutex
	settlements map[settlementKey]models.MonthlySettlement
}

func NewSettlementStore() *SettlementStore {
	return &SettlementStore{settlements: map[settlementKey]models.MonthlySettlement{}}
}

func (s *SettlementStore) Get(ctx context.Context, driverID uuid.UUID, month string) (models.MonthlySettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.settlements[settlementKey{driverID, month}]
	if !ok {
		return models.MonthlySettlement{}, types.ErrNotFound
	}
	return out, nil
}

func (s *SettlementStore) Create(ctx context.Context, m models.MonthlySettlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := settlementKey{m.DriverID, m.Month}
	if _, ok := s.settlements[key]; ok {
		return false, nil
	}
	s.settlements[key] = m
	return true, nil
}

func (s *SettlementStore) SetArchiveKey(ctx context.Context, driverID uuid.UUID, month, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := settlementKey{driverID, month}
	m, ok := s.settlements[k]
	if !ok {
		return types.ErrNotFound
	}
	if m.ArchiveKey == "" {
		m.ArchiveKey = key
		s.settlements[k] = m
	}
	return nil
}
