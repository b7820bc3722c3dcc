package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chargenet/internal/http/middleware"
	"chargenet/internal/service"
)

// SessionsHandler holds session lifecycle endpoints.
type SessionsHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewSessionsHandler builds handler set.
func NewSessionsHandler(svc *service.Service, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, logger: logger}
}

type startSessionRequest struct {
	ChargerID    string `json:"charger_id"`
	AccountID    string `json:"account_id"`
	VehiclePlate string `json:"vehicle_plate"`
	StartSoc     *int   `json:"start_soc"`
}

type stopSessionRequest struct {
	SessionID string   `json:"session_id"`
	EnergyKWh *float64 `json:"energy_kwh"`
	EndSoc    *int     `json:"end_soc"`
}

type cancelSessionRequest struct {
	SessionID string `json:"session_id"`
}

// HandleDriverStart handles POST /sessions/start for authenticated drivers.
func (h *SessionsHandler) HandleDriverStart(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChargerID == "" {
		writeError(w, http.StatusBadRequest, "charger_id is required")
		return
	}

	h.start(w, r, service.StartInput{
		ChargerID:    req.ChargerID,
		AccountID:    &accountID,
		VehiclePlate: req.VehiclePlate,
		StartSoc:     req.StartSoc,
	})
}

// HandleStaffStart handles POST /staff/sessions/start for walk-ins. The
// account reference is optional; without it the session settles by cash or card.
func (h *SessionsHandler) HandleStaffStart(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChargerID == "" {
		writeError(w, http.StatusBadRequest, "charger_id is required")
		return
	}

	input := service.StartInput{
		ChargerID:    req.ChargerID,
		VehiclePlate: req.VehiclePlate,
		StartSoc:     req.StartSoc,
	}
	if req.AccountID != "" {
		input.AccountID = &req.AccountID
	}
	h.start(w, r, input)
}

func (h *SessionsHandler) start(w http.ResponseWriter, r *http.Request, input service.StartInput) {
	session, err := h.svc.StartSession(r.Context(), input)
	if err != nil {
		h.logger.Warn("start session failed", zap.String("charger_id", input.ChargerID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}

// HandleStop handles POST /sessions/stop.
func (h *SessionsHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req stopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.EnergyKWh == nil {
		writeError(w, http.StatusBadRequest, "energy_kwh is required")
		return
	}

	session, err := h.svc.StopSession(r.Context(), service.StopInput{
		SessionID: req.SessionID,
		EnergyKWh: *req.EnergyKWh,
		EndSoc:    req.EndSoc,
	})
	if err != nil {
		h.logger.Warn("stop session failed", zap.String("session_id", req.SessionID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// HandleCancel handles POST /staff/sessions/cancel.
func (h *SessionsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	session, err := h.svc.CancelSession(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// HandleStatus handles GET /sessions/status?token= for driver displays.
func (h *SessionsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	projection, err := h.svc.SessionByToken(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

// HandleDetail handles GET /sessions/detail?id=.
func (h *SessionsHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	detail, err := h.svc.SessionDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleMySessions handles GET /sessions/me.
func (h *SessionsHandler) HandleMySessions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}
	sessions, err := h.svc.SessionsForAccount(r.Context(), accountID, 50)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// HandleActive handles GET /staff/sessions/active.
func (h *SessionsHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	projections, err := h.svc.ActiveSessions(r.Context(), 100)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": projections})
}
