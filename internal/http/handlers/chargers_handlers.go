package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chargenet/internal/service"
)

// ChargersHandler holds charger incident endpoints.
type ChargersHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewChargersHandler builds handler set.
func NewChargersHandler(svc *service.Service, logger *zap.Logger) *ChargersHandler {
	return &ChargersHandler{svc: svc, logger: logger}
}

type faultRequest struct {
	ChargerID   string `json:"charger_id"`
	Description string `json:"description"`
}

// HandleFault handles POST /staff/chargers/fault.
func (h *ChargersHandler) HandleFault(w http.ResponseWriter, r *http.Request) {
	var req faultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChargerID == "" {
		writeError(w, http.StatusBadRequest, "charger_id is required")
		return
	}

	charger, err := h.svc.ReportFault(r.Context(), req.ChargerID, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"charger": charger})
}
