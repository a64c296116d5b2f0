package middleware

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/pkg/logger"
)

type (
	// AuthService verifies a bearer token and returns its user.
	AuthService interface {
		RoleCheck(ctx context.Context, token string) (*models.User, error)
	}

	Middleware struct {
		service string // label of the HTTP metrics
		auth    AuthService
		log     logger.Logger
	}
)

func NewMiddleware(service string, auth AuthService, log logger.Logger) *Middleware {
	return &Middleware{
		service: service,
		auth:    auth,
		log:     log,
	}
}

// Wrap applies the engine chain: panics are recovered outermost, so even a
// failing auth check is answered with a request id and counted in metrics.
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return m.Recover(m.RequestID(m.Logging(m.Metrics(m.Auth(h)))))
}
