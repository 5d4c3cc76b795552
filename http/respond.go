package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"obesityrisk/ml"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	if field, ok := ml.FieldOf(err); ok {
		body.Field = field
	}
	respondStatus(w, status, body)
}

// statusFor maps an assessment error to its HTTP status.
func statusFor(err error) int {
	if ml.IsInputError(err) {
		return http.StatusUnprocessableEntity
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
