package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chargenet/internal/ledger"
	"chargenet/internal/pricing"
	"chargenet/internal/registry"
	"chargenet/internal/settlement"
	"chargenet/internal/wallet"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// State conflicts are surfaced distinctly so callers can retry after
// inspecting current state; anything unrecognized becomes a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrChargerNotFound),
		errors.Is(err, ledger.ErrSessionNotFound),
		errors.Is(err, settlement.ErrSessionNotFound),
		errors.Is(err, settlement.ErrPaymentNotFound),
		errors.Is(err, wallet.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrChargerUnavailable),
		errors.Is(err, ledger.ErrSessionNotActive),
		errors.Is(err, settlement.ErrSessionNotClosed),
		errors.Is(err, settlement.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, pricing.ErrInvalidMeasurement),
		errors.Is(err, settlement.ErrInvalidMethod),
		errors.Is(err, settlement.ErrWalletRequired),
		errors.Is(err, wallet.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
