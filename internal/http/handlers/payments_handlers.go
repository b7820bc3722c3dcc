package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chargenet/internal/http/middleware"
	"chargenet/internal/models"
	"chargenet/internal/service"
)

const dateLayout = "2006-01-02"

// PaymentsHandler holds settlement and payment lookup endpoints.
type PaymentsHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewPaymentsHandler builds handler set.
func NewPaymentsHandler(svc *service.Service, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{svc: svc, logger: logger}
}

type settleRequest struct {
	SessionID string `json:"session_id"`
	Method    string `json:"method"`
}

// HandleSettle handles POST /payments/settle.
func (h *PaymentsHandler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required")
		return
	}

	method := models.PaymentMethod(req.Method)
	payment, err := h.svc.Settle(r.Context(), req.SessionID, method)
	if err != nil {
		h.logger.Warn("settlement failed", zap.String("session_id", req.SessionID), zap.Error(err))
		writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{"payment": payment}
	if method == models.MethodWallet && payment.AccountID != nil {
		if balance, err := h.svc.Wallet().GetBalance(r.Context(), *payment.AccountID); err == nil {
			response["wallet_balance"] = balance
		}
	}
	writeJSON(w, http.StatusCreated, response)
}

// HandleInvoice handles GET /payments/invoice?session_id=.
func (h *PaymentsHandler) HandleInvoice(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	invoice, err := h.svc.Invoice(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// HandleMyPayments handles GET /payments/me.
func (h *PaymentsHandler) HandleMyPayments(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}
	payments, err := h.svc.PaymentsForAccount(r.Context(), accountID, 50)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments, "total": len(payments)})
}

// HandleMethods handles GET /payments/methods.
func (h *PaymentsHandler) HandleMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"methods": []map[string]interface{}{
			{"id": models.MethodWallet, "name": "Wallet", "description": "Pay from prepaid balance"},
			{"id": models.MethodCard, "name": "Credit/debit card", "description": "Pay by card"},
			{"id": models.MethodCash, "name": "Cash", "description": "Pay at the station", "staff_only": true},
		},
	})
}

// HandleSpending handles GET /payments/spending?from=&to=.
// Without parameters the current calendar month is used.
func (h *PaymentsHandler) HandleSpending(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}

	from, to, err := spendingRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}

	summary, err := h.svc.Spending(r.Context(), accountID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func spendingRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), nil
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}
