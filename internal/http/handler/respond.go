package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"partnerd/internal/assign"
	"partnerd/internal/duty"
	"partnerd/internal/wallet"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps store, duty and wallet errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := assign.Code(err)
	switch {
	case errors.Is(err, assign.ErrAlreadyPending),
		errors.Is(err, assign.ErrConflict),
		errors.Is(err, assign.ErrCancellationWindowExpired),
		errors.Is(err, assign.ErrInvalidTransition),
		errors.Is(err, assign.ErrOffDuty):
		status = http.StatusConflict
	case errors.Is(err, assign.ErrNoPendingOffer),
		errors.Is(err, assign.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, assign.ErrInvalidJob):
		status = http.StatusBadRequest
	case errors.Is(err, duty.ErrActiveAssignments):
		status, code = http.StatusConflict, "active_assignments"
	case errors.Is(err, wallet.ErrBelowMinimum):
		status, code = http.StatusBadRequest, "below_minimum"
	case errors.Is(err, wallet.ErrInsufficientBalance):
		status, code = http.StatusConflict, "insufficient_balance"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "server error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}
