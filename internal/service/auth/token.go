package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenVerifier checks HS256 access tokens issued by the auth service.
// The engine never issues tokens to end users.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// RoleCheck validates token and returns the caller it was issued to.
func (v *TokenVerifier) RoleCheck(ctx context.Context, token string) (*models.User, error) {
	ctx = wrap.WithAction(ctx, "validate_token")

	claims := &models.AccessClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, wrap.Error(ctx, ErrExpToken)
	case err != nil || !parsed.Valid:
		return nil, wrap.Error(ctx, fmt.Errorf("%w: %v", ErrInvalidToken, err))
	}

	if claims.UserID == uuid.Nil {
		return nil, wrap.Error(ctx, fmt.Errorf("%w: missing user_id", ErrInvalidToken))
	}

	role := types.UserRole(claims.Role)
	switch role {
	case types.AdminRole, types.ManagerRole, types.DispatcherRole, types.DriverRole:
	default:
		return nil, wrap.Error(ctx, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role))
	}

	return &models.User{
		ID:          claims.UserID,
		Role:        role,
		FranchiseID: claims.FranchiseID,
	}, nil
}

// Issue signs an access token for u. Used by tooling and tests.
func (v *TokenVerifier) Issue(u models.User, ttl time.Duration) (string, error) {
	now := v.now().UTC()
	claims := models.AccessClaims{
		UserID:      u.ID,
		Role:        string(u.Role),
		FranchiseID: u.FranchiseID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
