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

type ruleSource struct {
	ruleID   uuid.UUID
	sourceID string
}

type occurrenceKey struct {
	driverID uuid.UUID
	kind     models.OccurrenceKind
	key      string
}

// PenaltyStore keeps rules, penalty events, notification intents, driver
// penalty states and counted occurrences.
type PenaltyStore struct {
	mu            sync.RWMutex
	rules         map[uuid.UUID]models.PenaltyRule
	inactive      map[uuid.UUID]bool
	events        []models.PenaltyEvent
	eventKeys     map[ruleSource]struct{}
	notifications []models.NotificationIntent
	states        map[uuid.UUID]models.DriverPenaltyState
	occurrences   map[occurrenceKey]time.Time
}

func NewPenaltyStore(rules ...models.PenaltyRule) *PenaltyStore {
	s := &PenaltyStore{
		rules:       map[uuid.UUID]models.PenaltyRule{},
		inactive:    map[uuid.UUID]bool{},
		eventKeys:   map[ruleSource]struct{}{},
		states:      map[uuid.UUID]models.DriverPenaltyState{},
		occurrences: map[occurrenceKey]time.Time{},
	}
	for _, r := range rules {
		s.PutRule(r)
	}
	return s
}

func (s *PenaltyStore) PutRule(r models.PenaltyRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	delete(s.inactive, r.ID)
}

// Deactivate hides a rule from ActiveRules, GetRule still returns it.
func (s *PenaltyStore) Deactivate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactive[id] = true
}

// ActiveRules returns active rules ordered by name.
func (s *PenaltyStore) ActiveRules(ctx context.Context) ([]models.PenaltyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PenaltyRule, 0, len(s.rules))
	for id, r := range s.rules {
		if !s.inactive[id] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *PenaltyStore) GetRule(ctx context.Context, id uuid.UUID) (models.PenaltyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return models.PenaltyRule{}, types.ErrRuleNotFound
	}
	return r, nil
}

func (s *PenaltyStore) InsertEvent(ctx context.Context, e models.PenaltyEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ruleSource{e.RuleID, e.SourceEventID}
	if _, ok := s.eventKeys[key]; ok {
		return false, nil
	}
	s.eventKeys[key] = struct{}{}
	s.events = append(s.events, e)
	return true, nil
}

func (s *PenaltyStore) InsertNotifications(ctx context.Context, n []models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n...)
	return nil
}

// ListEvents returns the driver's penalty events, newest first.
func (s *PenaltyStore) ListEvents(ctx context.Context, driverID uuid.UUID) ([]models.PenaltyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PenaltyEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].DriverID == driverID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

// Notifications returns every stored intent in insertion order.
func (s *PenaltyStore) Notifications() []models.NotificationIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NotificationIntent(nil), s.notifications...)
}

func (s *PenaltyStore) GetState(ctx context.Context, driverID uuid.UUID) (models.DriverPenaltyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[driverID]
	if !ok {
		return models.DriverPenaltyState{}, types.ErrNotFound
	}
	return st, nil
}

func (s *PenaltyStore) SaveState(ctx context.Context, st models.DriverPenaltyState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[st.DriverID]
	if err := checkVersion(current.Version, expectedVersion, ok); err != nil {
		return err
	}
	s.states[st.DriverID] = st
	return nil
}

func (s *PenaltyStore) ListUnsyncedBlocks(ctx context.Context) ([]models.DriverPenaltyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DriverPenaltyState
	for _, st := range s.states {
		if st.NeedsBlockSync() {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID.String() < out[j].DriverID.String() })
	return out, nil
}

func (s *PenaltyStore) GetStates(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverPenaltyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]models.DriverPenaltyState, len(driverIDs))
	for _, id := range driverIDs {
		if st, ok := s.states[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (s *PenaltyStore) RecordOccurrence(ctx context.Context, o models.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := occurrenceKey{o.DriverID, o.Kind, o.Key}
	if _, ok := s.occurrences[key]; !ok {
		s.occurrences[key] = o.OccurredAt
	}
	return nil
}

func (s *PenaltyStore) CountOccurrences(ctx context.Context, driverID uuid.UUID, kind models.OccurrenceKind, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, at := range s.occurrences {
		if k.driverID == driverID && k.kind == kind && !at.Before(from) && !at.After(to) {
			n++
		}
	}
	return n, nil
}
