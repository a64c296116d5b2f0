package types

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrConfiguration      = errors.New("invalid configuration")
	ErrConflict           = errors.New("concurrent update conflict")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrBlockFailed        = errors.New("failed to block driver in registry")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrNotFound           = errors.New("requested item not found")
	ErrDriverNotFound     = errors.New("driver not found")
	ErrRuleNotFound       = errors.New("penalty rule not found")
	ErrSettlementNotReady = errors.New("month is not finished yet")
)
