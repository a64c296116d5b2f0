package server

import (
	"net/http"

	"github.com/Temutjin2k/driver-engine/docs"
	"github.com/Temutjin2k/driver-engine/internal/adapter/http/middleware"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

var (
	staff = []types.UserRole{types.AdminRole, types.ManagerRole}
	desk  = []types.UserRole{types.AdminRole, types.ManagerRole, types.DispatcherRole}
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	// System Health
	mux.HandleFunc("GET /health", routes.health.HealthCheck)

	setupSwaggerRoutes(mux)
	setupMetricsRoute(mux)

	setupPerformanceRoutes(mux, routes, m)
	setupEarningsRoutes(mux, routes, m)
	setupPenaltyRoutes(mux, routes, m)
}

func setupPerformanceRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("GET /drivers/{driver_id}/performance", m.RequireRoles(routes.performance.GetPerformance, desk...)) // Driver score and category
	mux.Handle("POST /dispatch/rank", m.RequireRoles(routes.dispatch.RankCandidates, desk...))                     // Ranked candidates for a trip
}

func setupEarningsRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /drivers/{driver_id}/earnings", m.RequireRoles(routes.earnings.ApplyTripEarning, staff...))                                // Record a trip earning
	mux.Handle("GET /drivers/{driver_id}/earnings/daily", m.RequireRoles(routes.earnings.GetDailyEarnings, append(staff, types.DriverRole)...)) // Daily state and incentive
	mux.Handle("POST /earnings/settlement/preview", m.RequireRoles(routes.earnings.PreviewSettlement, staff...))                                // Bonus and deduction preview
	mux.Handle("POST /drivers/{driver_id}/settlements/{month}", m.RequireRoles(routes.earnings.SettleMonth, types.AdminRole))                   // Settle a finished month
}

func setupPenaltyRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /penalties/events", m.RequireRoles(routes.penalty.EvaluateEvent, staff...))             // Evaluate a collaborator event
	mux.Handle("POST /drivers/{driver_id}/penalties", m.RequireRoles(routes.penalty.ApplyManual, staff...))  // Manual penalty
	mux.Handle("GET /drivers/{driver_id}/penalties", m.RequireRoles(routes.penalty.ListPenalties, staff...)) // Penalty history and state
	mux.Handle("GET /ws/admin/penalties", m.RequireRoles(routes.feed.Subscribe, types.AdminRole))            // Live penalty feed
}

// setupSwaggerRoutes serves the engine Swagger UI
func setupSwaggerRoutes(mux *http.ServeMux) {
	swaggerURL := httpSwagger.InstanceName(docs.InstanceName)
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
}
