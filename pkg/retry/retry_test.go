package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTemp = errors.New("temporary")

func TestDo(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), 3, 0, nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTemp
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), 2, time.Millisecond, nil, func(context.Context) error {
			calls++
			return errTemp
		})
		assert.ErrorIs(t, err, errTemp)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		permanent := errors.New("permanent")
		err := Do(context.Background(), 5, 0, func(err error) bool { return errors.Is(err, errTemp) }, func(context.Context) error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Do(ctx, 5, time.Hour, nil, func(context.Context) error {
			calls++
			cancel()
			return errTemp
		})
		assert.ErrorIs(t, err, errTemp)
		assert.Equal(t, 1, calls)
	})
}
