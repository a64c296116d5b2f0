package middleware

import (
	"fmt"
	"net/http"

	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

func (app *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if panic := recover(); panic != nil {
				ctx := wrap.WithAction(r.Context(), "http_panic_recovered")
				app.log.Error(ctx, "panic while serving request", fmt.Errorf("%v", panic), "path", r.URL.Path)

				w.Header().Set("Connection", "close")
				errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
