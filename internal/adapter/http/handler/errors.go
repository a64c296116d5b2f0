package handler

import "net/http"

func errorResponse(w http.ResponseWriter, status int, message any) {
	env := envelope{"error": message}

	if err := writeJSON(w, status, env, nil); err != nil {
		w.WriteHeader(500)
	}
}

// failedValidationResponse returns 422 UnprocessableEntity status.
// The request was well-formed JSON but its values break the field rules,
// repeating it unchanged fails the same way.
func failedValidationResponse(w http.ResponseWriter, errors map[string]string) {
	errorResponse(w, http.StatusUnprocessableEntity, errors)
}

// badRequestResponse returns 400 BadRequest status.
func badRequestResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusBadRequest, message)
}

func notPermittedResponse(w http.ResponseWriter) {
	errorResponse(w, http.StatusForbidden, "your user account doesn't have the necessary permissions to access this resource")
}

// serviceErrorResponse maps a service error onto its status code.
func serviceErrorResponse(w http.ResponseWriter, err error) {
	errorResponse(w, GetCode(err), publicMessage(err))
}
