package rabbit

import (
	"errors"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
)

// isPoison reports errors that will fail again on redelivery.
func isPoison(err error) bool {
	return oneOf(err, types.ErrInvalidInput, types.ErrInvariantViolation, types.ErrConfiguration)
}

func oneOf(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
