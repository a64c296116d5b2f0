package wrap

import (
	"context"
	"errors"
)

// Error wraps err with the LogCtx of ctx. Already wrapped errors get their
// log context refreshed, the chain is left untouched.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	c, _ := fromCtx(ctx)

	var e *errorWithLogCtx
	if errors.As(err, &e) {
		return &errorWithLogCtx{err: err, logCtx: mergeLogCtx(e.logCtx, c)}
	}

	return &errorWithLogCtx{
		err:    err,
		logCtx: c,
	}
}

// mergeLogCtx keeps the innermost values, filling gaps from outer.
func mergeLogCtx(inner, outer LogCtx) LogCtx {
	if inner.Action == "" {
		inner.Action = outer.Action
	}
	if inner.UserID == "" {
		inner.UserID = outer.UserID
	}
	if inner.RequestID == "" {
		inner.RequestID = outer.RequestID
	}
	if inner.DriverID == "" {
		inner.DriverID = outer.DriverID
	}
	return inner
}
