package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chargenet/internal/http/middleware"
	"chargenet/internal/wallet"
)

// WalletHandler holds wallet balance and top-up endpoints.
type WalletHandler struct {
	wallet *wallet.Service
	logger *zap.Logger
}

// NewWalletHandler builds handler set.
func NewWalletHandler(walletSvc *wallet.Service, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{wallet: walletSvc, logger: logger}
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
}

// HandleBalance handles GET /wallet/balance.
func (h *WalletHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}
	balance, err := h.wallet.GetBalance(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"account_id": accountID, "balance": balance})
}

// HandleTopUp handles POST /wallet/topup.
func (h *WalletHandler) HandleTopUp(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing account")
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	balance, err := h.wallet.Credit(r.Context(), accountID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"amount":     req.Amount,
		"balance":    balance,
	})
}
