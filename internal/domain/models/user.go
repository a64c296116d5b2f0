package models

import (
	"context"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User is the authenticated caller resolved from a bearer token.
type User struct {
	ID          uuid.UUID      `json:"id"`
	Role        types.UserRole `json:"role"`
	FranchiseID *uuid.UUID     `json:"franchise_id,omitempty"`
}

// AccessClaims are issued by the auth service, the engine only verifies them.
type AccessClaims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Role        string     `json:"role"`
	FranchiseID *uuid.UUID `json:"franchise_id,omitempty"`
	jwt.RegisteredClaims
}

type userCtxKey struct{}

var anonymous = &User{}

func AnonymousUser() *User {
	return anonymous
}

func (u *User) IsAnonymous() bool {
	return u == anonymous || u.ID == uuid.Nil
}

func (u *User) HasRole(roles ...types.UserRole) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the caller or nil when no auth middleware ran.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
