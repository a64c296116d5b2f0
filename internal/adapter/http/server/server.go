package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/adapter/http/handler"
	"github.com/Temutjin2k/driver-engine/internal/adapter/http/middleware"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

const (
	serverIPAddress = "%s:%s"
	serviceName     = "engine"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Services are the engine operations exposed over HTTP.
type Services struct {
	Performance handler.PerformanceService
	Dispatch    handler.DispatchService
	Earnings    handler.EarningsService
	Penalty     handler.PenaltyService
	Auth        middleware.AuthService
	DB          handler.Pinger
}

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type handlers struct {
	health      *handler.Health
	performance *handler.Performance
	dispatch    *handler.Dispatch
	earnings    *handler.Earnings
	penalty     *handler.Penalty
	feed        *handler.PenaltyFeed
}

func New(cfg config.Config, svc Services, feed *handler.PenaltyFeed, log logger.Logger) (*API, error) {
	if svc.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if svc.Performance == nil || svc.Dispatch == nil || svc.Earnings == nil || svc.Penalty == nil {
		return nil, errors.New("all engine services are required")
	}
	if feed == nil {
		return nil, errors.New("penalty feed is required")
	}

	api := &API{
		mux: http.NewServeMux(),
		routes: &handlers{
			health:      handler.NewHealth(serviceName, svc.DB, log),
			performance: handler.NewPerformance(svc.Performance, log),
			dispatch:    handler.NewDispatch(svc.Dispatch, log),
			earnings:    handler.NewEarnings(svc.Earnings, log),
			penalty:     handler.NewPenalty(svc.Penalty, log),
			feed:        feed,
		},
		m:    middleware.NewMiddleware(serviceName, svc.Auth, log),
		addr: fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Services.EnginePort),
		log:  log,
	}

	setupRoutes(api.mux, api.routes, api.m)

	api.server = &http.Server{
		Addr:              api.addr,
		Handler:           api.withMiddleware(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// Handler returns the routed mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	return a.server.Handler
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	return a.m.Wrap(a.mux)
}
