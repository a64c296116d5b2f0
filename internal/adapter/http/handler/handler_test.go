package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, method, target, body string, user *models.User) *http.Request {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	if user != nil {
		r = r.WithContext(models.WithUser(r.Context(), user))
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("op: %w", types.ErrInvalidInput), http.StatusBadRequest},
		{types.ErrUnauthorized, http.StatusForbidden},
		{types.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("op: %w", types.ErrDriverNotFound), http.StatusNotFound},
		{types.ErrRuleNotFound, http.StatusNotFound},
		{types.ErrConflict, http.StatusConflict},
		{types.ErrSettlementNotReady, http.StatusConflict},
		{types.ErrConfiguration, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetCode(tt.err), tt.err.Error())
	}
}

type fakePerformance struct {
	metrics models.PerformanceMetrics
	err     error
}

func (f *fakePerformance) GetPerformance(ctx context.Context, driverID uuid.UUID) (models.PerformanceMetrics, error) {
	f.metrics.DriverID = driverID
	return f.metrics, f.err
}

func TestPerformance_GetPerformance(t *testing.T) {
	h := NewPerformance(&fakePerformance{metrics: models.PerformanceMetrics{Score: 80, Category: types.CategoryGreen}}, logger.Discard())

	t.Run("invalid id", func(t *testing.T) {
		r := newRequest(t, http.MethodGet, "/drivers/nope/performance", "", nil)
		r.SetPathValue("driver_id", "nope")
		rec := httptest.NewRecorder()

		h.GetPerformance(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		id := uuid.New()
		r := newRequest(t, http.MethodGet, "/drivers/"+id.String()+"/performance", "", nil)
		r.SetPathValue("driver_id", id.String())
		rec := httptest.NewRecorder()

		h.GetPerformance(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.PerformanceMetrics
		require.NoError(t, json.Unmarshal(decodeBody(t, rec)["performance"], &got))
		assert.Equal(t, id, got.DriverID)
		assert.Equal(t, 80, got.Score)
		assert.Equal(t, types.CategoryGreen, got.Category)
	})

	t.Run("internal error is hidden", func(t *testing.T) {
		h := NewPerformance(&fakePerformance{err: errors.New("pq: relation missing")}, logger.Discard())
		id := uuid.New()
		r := newRequest(t, http.MethodGet, "/", "", nil)
		r.SetPathValue("driver_id", id.String())
		rec := httptest.NewRecorder()

		h.GetPerformance(rec, r)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation missing")
	})
}

type fakeDispatch struct {
	got models.TripRequest
	out []models.DispatchCandidate
	err error
}

func (f *fakeDispatch) RankCandidates(ctx context.Context, trip models.TripRequest) ([]models.DispatchCandidate, error) {
	f.got = trip
	return f.out, f.err
}

func TestDispatch_RankCandidates(t *testing.T) {
	franchise := uuid.New()
	user := &models.User{ID: uuid.New(), Role: types.DispatcherRole, FranchiseID: &franchise}
	tripID := uuid.New()

	t.Run("franchise defaults to caller", func(t *testing.T) {
		svc := &fakeDispatch{}
		h := NewDispatch(svc, logger.Discard())
		body := `{"trip_id":"` + tripID.String() + `","vehicle_class":"ECONOMY","pickup":{"latitude":43.2,"longitude":76.9}}`
		rec := httptest.NewRecorder()

		h.RankCandidates(rec, newRequest(t, http.MethodPost, "/dispatch/rank", body, user))

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.got.FranchiseID)
		assert.Equal(t, franchise, *svc.got.FranchiseID)
		assert.Equal(t, types.EconomyClass, svc.got.VehicleClass)
		assert.JSONEq(t, `[]`, string(decodeBody(t, rec)["candidates"]))
	})

	t.Run("validation", func(t *testing.T) {
		h := NewDispatch(&fakeDispatch{}, logger.Discard())
		body := `{"vehicle_class":"BUS","pickup":{"latitude":120,"longitude":0}}`
		rec := httptest.NewRecorder()

		h.RankCandidates(rec, newRequest(t, http.MethodPost, "/dispatch/rank", body, user))

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var errs map[string]string
		require.NoError(t, json.Unmarshal(decodeBody(t, rec)["error"], &errs))
		assert.Contains(t, errs, "trip_id")
		assert.Contains(t, errs, "vehicle_class")
		assert.Contains(t, errs, "pickup.latitude")
	})

	t.Run("unknown field", func(t *testing.T) {
		h := NewDispatch(&fakeDispatch{}, logger.Discard())
		rec := httptest.NewRecorder()

		h.RankCandidates(rec, newRequest(t, http.MethodPost, "/dispatch/rank", `{"radius":5}`, user))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "radius")
	})

	t.Run("service rejects input", func(t *testing.T) {
		h := NewDispatch(&fakeDispatch{err: fmt.Errorf("rank: %w: bad pickup", types.ErrInvalidInput)}, logger.Discard())
		body := `{"trip_id":"` + tripID.String() + `","pickup":{"latitude":1,"longitude":1}}`
		rec := httptest.NewRecorder()

		h.RankCandidates(rec, newRequest(t, http.MethodPost, "/dispatch/rank", body, user))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type fakeEarnings struct {
	applied    models.TripEarning
	dailyDay   time.Time
	dailyFr    uuid.UUID
	settleErr  error
	cfg        models.EarningsConfig
	settlement models.MonthlySettlement
}

func (f *fakeEarnings) ApplyTripEarning(ctx context.Context, te models.TripEarning) (models.DailyLimitState, error) {
	f.applied = te
	return models.DailyLimitState{DriverID: te.DriverID, Target: decimal.NewFromInt(1000), EarnedSoFar: te.Amount, TripCount: 1}, nil
}

func (f *fakeEarnings) GetDailyState(ctx context.Context, driverID, franchiseID uuid.UUID, day time.Time) (models.DailyEarnings, error) {
	f.dailyDay, f.dailyFr = day, franchiseID
	return models.DailyEarnings{State: models.DailyLimitState{DriverID: driverID, Date: day}}, nil
}

func (f *fakeEarnings) EffectiveConfig(ctx context.Context, driverID, franchiseID uuid.UUID) (models.EarningsConfig, error) {
	return f.cfg, nil
}

func (f *fakeEarnings) ComputeMonthlySettlement(ctx context.Context, monthlyEarnings decimal.Decimal, cfg models.EarningsConfig) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(400), decimal.NewFromInt(1), nil
}

func (f *fakeEarnings) SettleMonth(ctx context.Context, driverID, franchiseID uuid.UUID, month string) (models.MonthlySettlement, error) {
	if f.settleErr != nil {
		return models.MonthlySettlement{}, f.settleErr
	}
	f.settlement.DriverID, f.settlement.Month = driverID, month
	return f.settlement, nil
}

func TestEarnings_ApplyTripEarning(t *testing.T) {
	svc := &fakeEarnings{}
	h := NewEarnings(svc, logger.Discard())
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	driverID, franchise := uuid.New(), uuid.New()
	body := `{"franchise_id":"` + franchise.String() + `","source_event_id":"trip-1","amount":"250.50"}`
	r := newRequest(t, http.MethodPost, "/", body, nil)
	r.SetPathValue("driver_id", driverID.String())
	rec := httptest.NewRecorder()

	h.ApplyTripEarning(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, driverID, svc.applied.DriverID)
	assert.Equal(t, "trip-1", svc.applied.SourceEventID)
	assert.True(t, decimal.RequireFromString("250.50").Equal(svc.applied.Amount))
	assert.Equal(t, now, svc.applied.OccurredAt)
	assert.JSONEq(t, `"749.5"`, string(decodeBody(t, rec)["remaining"]))
}

func TestEarnings_ApplyTripEarningValidation(t *testing.T) {
	h := NewEarnings(&fakeEarnings{}, logger.Discard())
	r := newRequest(t, http.MethodPost, "/", `{"amount":"-1"}`, nil)
	r.SetPathValue("driver_id", uuid.NewString())
	rec := httptest.NewRecorder()

	h.ApplyTripEarning(rec, r)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	for _, field := range []string{"franchise_id", "source_event_id", "amount"} {
		assert.Contains(t, rec.Body.String(), field)
	}
}

func TestEarnings_GetDailyEarnings(t *testing.T) {
	driverID := uuid.New()
	franchise := uuid.New()

	t.Run("driver reads own state", func(t *testing.T) {
		svc := &fakeEarnings{}
		h := NewEarnings(svc, logger.Discard())
		user := &models.User{ID: driverID, Role: types.DriverRole, FranchiseID: &franchise}
		r := newRequest(t, http.MethodGet, "/?date=2026-05-02", "", user)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.GetDailyEarnings(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), svc.dailyDay)
		assert.Equal(t, franchise, svc.dailyFr)
	})

	t.Run("driver cannot read others", func(t *testing.T) {
		h := NewEarnings(&fakeEarnings{}, logger.Discard())
		user := &models.User{ID: uuid.New(), Role: types.DriverRole}
		r := newRequest(t, http.MethodGet, "/", "", user)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.GetDailyEarnings(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		h := NewEarnings(&fakeEarnings{}, logger.Discard())
		user := &models.User{ID: uuid.New(), Role: types.ManagerRole}
		r := newRequest(t, http.MethodGet, "/?date=02.05.2026", "", user)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.GetDailyEarnings(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("defaults to today", func(t *testing.T) {
		svc := &fakeEarnings{}
		h := NewEarnings(svc, logger.Discard())
		h.now = func() time.Time { return time.Date(2026, 5, 3, 23, 30, 0, 0, time.UTC) }
		user := &models.User{ID: uuid.New(), Role: types.AdminRole}
		r := newRequest(t, http.MethodGet, "/", "", user)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.GetDailyEarnings(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), svc.dailyDay)
		assert.Equal(t, uuid.Nil, svc.dailyFr)
	})

	t.Run("today follows config time zone", func(t *testing.T) {
		svc := &fakeEarnings{cfg: models.EarningsConfig{Timezone: "Asia/Almaty"}}
		h := NewEarnings(svc, logger.Discard())
		h.now = func() time.Time { return time.Date(2026, 5, 3, 23, 30, 0, 0, time.UTC) }
		user := &models.User{ID: uuid.New(), Role: types.AdminRole}
		r := newRequest(t, http.MethodGet, "/", "", user)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.GetDailyEarnings(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), svc.dailyDay)
	})
}

func TestEarnings_PreviewSettlement(t *testing.T) {
	cfgID := uuid.New()
	h := NewEarnings(&fakeEarnings{cfg: models.EarningsConfig{ID: cfgID}}, logger.Discard())
	rec := httptest.NewRecorder()

	h.PreviewSettlement(rec, newRequest(t, http.MethodPost, "/", `{"monthly_earnings":"2300"}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Bonus           decimal.Decimal `json:"bonus"`
		DeductionAmount decimal.Decimal `json:"deduction_amount"`
		ConfigID        uuid.UUID       `json:"config_id"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rec)["settlement"], &got))
	assert.True(t, decimal.NewFromInt(400).Equal(got.Bonus))
	assert.True(t, decimal.NewFromInt(23).Equal(got.DeductionAmount))
	assert.Equal(t, cfgID, got.ConfigID)
}

func TestEarnings_SettleMonth(t *testing.T) {
	driverID := uuid.New()

	t.Run("invalid month", func(t *testing.T) {
		h := NewEarnings(&fakeEarnings{}, logger.Discard())
		r := newRequest(t, http.MethodPost, "/", "", nil)
		r.SetPathValue("driver_id", driverID.String())
		r.SetPathValue("month", "2026-13")
		rec := httptest.NewRecorder()

		h.SettleMonth(rec, r)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("month not finished", func(t *testing.T) {
		h := NewEarnings(&fakeEarnings{settleErr: fmt.Errorf("settle: %w", types.ErrSettlementNotReady)}, logger.Discard())
		r := newRequest(t, http.MethodPost, "/", "", nil)
		r.SetPathValue("driver_id", driverID.String())
		r.SetPathValue("month", "2026-05")
		rec := httptest.NewRecorder()

		h.SettleMonth(rec, r)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		h := NewEarnings(&fakeEarnings{}, logger.Discard())
		r := newRequest(t, http.MethodPost, "/", "", nil)
		r.SetPathValue("driver_id", driverID.String())
		r.SetPathValue("month", "2026-04")
		rec := httptest.NewRecorder()

		h.SettleMonth(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"month": "2026-04"`)
	})
}

type mockPenaltyService struct {
	mock.Mock
}

func (m *mockPenaltyService) EvaluatePenaltyEvent(ctx context.Context, ev models.DriverEvent) (models.EvaluationResult, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(models.EvaluationResult), args.Error(1)
}

func (m *mockPenaltyService) ApplyManual(ctx context.Context, mp models.ManualPenalty) (models.EvaluationResult, error) {
	args := m.Called(ctx, mp)
	return args.Get(0).(models.EvaluationResult), args.Error(1)
}

func (m *mockPenaltyService) ListPenalties(ctx context.Context, driverID uuid.UUID) (models.DriverPenalties, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).(models.DriverPenalties), args.Error(1)
}

func TestPenalty_EvaluateEvent(t *testing.T) {
	driverID := uuid.New()
	body := `{"kind":"complaint","event":{"source_event_id":"c-9","driver_id":"` + driverID.String() + `","timestamp":"2026-05-01T10:00:00Z"}}`

	t.Run("stored and blocked", func(t *testing.T) {
		svc := &mockPenaltyService{}
		res := models.EvaluationResult{DriverID: driverID, Blocked: true, State: types.StateBlocked}
		svc.On("EvaluatePenaltyEvent", mock.Anything, mock.MatchedBy(func(ev models.DriverEvent) bool {
			c, ok := ev.(models.ComplaintEvent)
			return ok && c.SourceEventID == "c-9" && c.DriverID == driverID
		})).Return(res, nil)
		h := NewPenalty(svc, logger.Discard())
		rec := httptest.NewRecorder()

		h.EvaluateEvent(rec, newRequest(t, http.MethodPost, "/penalties/events", body, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"blocked": true`)
		svc.AssertExpectations(t)
	})

	t.Run("registry block pending", func(t *testing.T) {
		svc := &mockPenaltyService{}
		svc.On("EvaluatePenaltyEvent", mock.Anything, mock.Anything).
			Return(models.EvaluationResult{DriverID: driverID, State: types.StateBlocked}, fmt.Errorf("evaluate: %w", types.ErrBlockFailed))
		h := NewPenalty(svc, logger.Discard())
		rec := httptest.NewRecorder()

		h.EvaluateEvent(rec, newRequest(t, http.MethodPost, "/penalties/events", body, nil))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "warning")
	})

	t.Run("unknown kind", func(t *testing.T) {
		h := NewPenalty(&mockPenaltyService{}, logger.Discard())
		rec := httptest.NewRecorder()

		h.EvaluateEvent(rec, newRequest(t, http.MethodPost, "/penalties/events", `{"kind":"refund","event":{}}`, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("event of wrong shape", func(t *testing.T) {
		h := NewPenalty(&mockPenaltyService{}, logger.Discard())
		rec := httptest.NewRecorder()

		h.EvaluateEvent(rec, newRequest(t, http.MethodPost, "/penalties/events", `{"kind":"trip","event":{"driver_id":42}}`, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPenalty_ApplyManual(t *testing.T) {
	driverID, ruleID := uuid.New(), uuid.New()
	actor := &models.User{ID: uuid.New(), Role: types.ManagerRole}

	t.Run("actor from token and generated source id", func(t *testing.T) {
		svc := &mockPenaltyService{}
		svc.On("ApplyManual", mock.Anything, mock.MatchedBy(func(mp models.ManualPenalty) bool {
			return mp.ActorID == actor.ID &&
				mp.DriverID == driverID &&
				mp.RuleID == ruleID &&
				strings.HasPrefix(mp.SourceEventID, "manual-") &&
				mp.Context["reason"] == "rude to customer"
		})).Return(models.EvaluationResult{DriverID: driverID, State: types.StateWarned}, nil)
		h := NewPenalty(svc, logger.Discard())

		r := newRequest(t, http.MethodPost, "/", `{"rule_id":"`+ruleID.String()+`","reason":"rude to customer"}`, actor)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.ApplyManual(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown rule", func(t *testing.T) {
		svc := &mockPenaltyService{}
		svc.On("ApplyManual", mock.Anything, mock.Anything).
			Return(models.EvaluationResult{}, fmt.Errorf("apply: %w", types.ErrRuleNotFound))
		h := NewPenalty(svc, logger.Discard())

		r := newRequest(t, http.MethodPost, "/", `{"rule_id":"`+ruleID.String()+`"}`, actor)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.ApplyManual(rec, r)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing rule id", func(t *testing.T) {
		h := NewPenalty(&mockPenaltyService{}, logger.Discard())
		r := newRequest(t, http.MethodPost, "/", `{}`, actor)
		r.SetPathValue("driver_id", driverID.String())
		rec := httptest.NewRecorder()

		h.ApplyManual(rec, r)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPenalty_ListPenalties(t *testing.T) {
	driverID := uuid.New()
	svc := &mockPenaltyService{}
	svc.On("ListPenalties", mock.Anything, driverID).Return(models.DriverPenalties{
		State:  models.DriverPenaltyState{DriverID: driverID, State: types.StateWarned},
		Events: []models.PenaltyEvent{{DriverID: driverID, SourceEventID: "c-1", Application: models.Automatic{}}},
	}, nil)
	h := NewPenalty(svc, logger.Discard())

	r := newRequest(t, http.MethodGet, "/", "", nil)
	r.SetPathValue("driver_id", driverID.String())
	rec := httptest.NewRecorder()

	h.ListPenalties(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state": "WARNED"`)
	assert.Contains(t, rec.Body.String(), `"applied_by"`)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealth("engine", fakePinger{}, logger.Discard()).HealthCheck(rec, newRequest(t, http.MethodGet, "/health", "", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "available")

	rec = httptest.NewRecorder()
	NewHealth("engine", fakePinger{err: errors.New("down")}, logger.Discard()).HealthCheck(rec, newRequest(t, http.MethodGet, "/health", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
