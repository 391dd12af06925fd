package ledger_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ledger/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountAlreadyExists),
		errors.Is(err, domain.ErrCardAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidEntryKind),
		errors.Is(err, domain.ErrInvalidPIN),
		errors.Is(err, domain.ErrInvalidCardLimit):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidTransfer),
		errors.Is(err, domain.ErrInvalidCardAction),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrCardNotActive),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := statusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		logger.Error("Storage unavailable", zap.Error(err))
		writeError(w, status, "storage temporarily unavailable")
	case http.StatusInternalServerError:
		logger.Error("Unhandled error", zap.Error(err))
		writeError(w, status, "internal server error")
	case http.StatusUnauthorized:
		logger.Warn("Unauthorized request")
		writeError(w, status, domain.ErrUnauthorized.Error())
	default:
		logger.Debug("Request rejected", zap.Int("status", status), zap.String("error", err.Error()))
		writeError(w, status, err.Error())
	}
}
