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

type attendance struct {
	checkedIn   bool
	checkedInAt *time.Time
	status      types.AttendanceStatus
}

// Registry is an in-memory driver registry with daily attendance.
type Registry struct {
	mu         sync.RWMutex
	drivers    map[uuid.UUID]models.DriverRecord
	attendance map[dayKey]attendance
}

func NewRegistry() *Registry {
	return &Registry{
		drivers:    map[uuid.UUID]models.DriverRecord{},
		attendance: map[dayKey]attendance{},
	}
}

// PutDriver stores the registry part of rec. Attendance fields are ignored.
func (r *Registry) PutDriver(rec models.DriverRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.CheckedIn, rec.CheckedInAt, rec.AttendanceStatus = false, nil, ""
	r.drivers[rec.DriverID] = rec
}

func (r *Registry) SetAttendance(driverID uuid.UUID, day time.Time, status types.AttendanceStatus, checkedInAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attendance[dayKey{driverID, day.UTC()}] = attendance{
		checkedIn:   checkedInAt != nil,
		checkedInAt: checkedInAt,
		status:      status,
	}
}

// ListCandidates returns drivers of the franchise, or all drivers when
// franchiseID is nil, joined with their attendance of day.
func (r *Registry) ListCandidates(ctx context.Context, franchiseID *uuid.UUID, day time.Time) ([]models.DriverRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.DriverRecord, 0, len(r.drivers))
	for id, rec := range r.drivers {
		if franchiseID != nil && rec.FranchiseID != *franchiseID {
			continue
		}
		if a, ok := r.attendance[dayKey{id, day.UTC()}]; ok {
			rec.CheckedIn = a.checkedIn
			rec.CheckedInAt = a.checkedInAt
			rec.AttendanceStatus = a.status
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID.String() < out[j].DriverID.String() })
	return out, nil
}

// BlockDriver flips the driver status to BLOCKED.
func (r *Registry) BlockDriver(ctx context.Context, driverID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.drivers[driverID]
	if !ok {
		return types.ErrDriverNotFound
	}
	rec.Status = types.DriverBlocked
	r.drivers[driverID] = rec
	return nil
}

func (r *Registry) Driver(driverID uuid.UUID) (models.DriverRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.drivers[driverID]
	return rec, ok
}
