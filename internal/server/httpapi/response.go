package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/nosuite/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the public message of err and its status.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: common.PublicMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrServiceNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrBadPassword):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden), errors.Is(err, common.ErrRefuse):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDecryptFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
