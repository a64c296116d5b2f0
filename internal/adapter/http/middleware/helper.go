package middleware

import (
	"encoding/json"
	"net/http"

	wrap "github.com/Temutjin2k/driver-engine/pkg/logger/wrapper"
)

type envelope map[string]any

// errorResponse writes {"error": message} and echoes the request id when one
// is already assigned. 401 responses carry a bearer challenge.
func errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := envelope{"error": message}
	id := wrap.GetRequestID(r.Context())
	if id == "" {
		// Recover sits outside RequestID and only sees the header
		id = w.Header().Get(requestIDHeader)
	}
	if id != "" {
		env["request_id"] = id
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="driver-engine"`)
	}

	js, err := json.Marshal(env)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}
