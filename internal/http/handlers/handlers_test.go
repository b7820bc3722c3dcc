package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chargenet/internal/events"
	httpserver "chargenet/internal/http"
	"chargenet/internal/http/middleware"
	"chargenet/internal/ledger"
	"chargenet/internal/models"
	"chargenet/internal/registry"
	"chargenet/internal/service"
	"chargenet/internal/settlement"
	"chargenet/internal/storage/memstore"
	"chargenet/internal/wallet"
)

const (
	testJWTSecret = "test-secret"
	testStaffKey  = "staff-key"
)

type apiFixture struct {
	router http.Handler
	store  *memstore.Store
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	store := memstore.New()
	store.PutCharger(models.Charger{
		ID:          "charger-1",
		StationID:   "station-1",
		StationName: "Central",
		Status:      models.ChargerAvailable,
		PowerKW:     50,
		PricePerKWh: 3000,
	})
	store.PutAccount(models.Account{ID: "acc-1", Balance: 100000})

	logger := zap.NewNop()
	reg := registry.New(store.Chargers(), logger)
	ldg := ledger.New(store.Sessions(), reg, logger)
	wlt := wallet.NewService(store.Accounts(), logger)
	stl := settlement.NewService(store.Sessions(), store.Payments(), wlt, logger)
	svc := service.New(ldg, stl, reg, wlt, store.Sessions(), nil, events.NewFanout(), logger)

	sessionsHandler := NewSessionsHandler(svc, logger)
	paymentsHandler := NewPaymentsHandler(svc, logger)
	walletHandler := NewWalletHandler(wlt, logger)
	chargersHandler := NewChargersHandler(svc, logger)

	keyHash, err := bcrypt.GenerateFromPassword([]byte(testStaffKey), bcrypt.MinCost)
	require.NoError(t, err)

	driver := middleware.DriverAuth(testJWTSecret)
	staff := middleware.StaffAuth(string(keyHash))

	router := httpserver.NewRouter(httpserver.Routes{
		DriverStart:    driver(http.HandlerFunc(sessionsHandler.HandleDriverStart)),
		StaffStart:     staff(http.HandlerFunc(sessionsHandler.HandleStaffStart)),
		Stop:           http.HandlerFunc(sessionsHandler.HandleStop),
		Cancel:         staff(http.HandlerFunc(sessionsHandler.HandleCancel)),
		Settle:         http.HandlerFunc(paymentsHandler.HandleSettle),
		Fault:          staff(http.HandlerFunc(chargersHandler.HandleFault)),
		SessionStatus:  http.HandlerFunc(sessionsHandler.HandleStatus),
		SessionsMe:     driver(http.HandlerFunc(sessionsHandler.HandleMySessions)),
		Invoice:        http.HandlerFunc(paymentsHandler.HandleInvoice),
		PaymentMethods: http.HandlerFunc(paymentsHandler.HandleMethods),
		WalletBalance:  driver(http.HandlerFunc(walletHandler.HandleBalance)),
		WalletTopUp:    driver(http.HandlerFunc(walletHandler.HandleTopUp)),
		Health:         NewHealthHandler(),
	})
	return apiFixture{router: router, store: store}
}

func driverToken(t *testing.T, accountID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (fx apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestDriverStartRequiresAuth(t *testing.T) {
	fx := newAPIFixture(t)

	rec := fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	auth := map[string]string{"Authorization": "Bearer " + driverToken(t, "acc-1")}

	rec := fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode(t, rec)["session"].(map[string]interface{})
	sessionID := session["id"].(string)
	token := session["token"].(string)

	// The occupied charger rejects a second start.
	rec = fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, auth)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Unknown charger maps to 404.
	rec = fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "ghost"}, auth)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Status lookup by token is open access for charger displays.
	rec = fx.do(t, http.MethodGet, "/sessions/status?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = fx.do(t, http.MethodGet, "/sessions/status?token=unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Stop requires the meter reading.
	rec = fx.do(t, http.MethodPost, "/sessions/stop", map[string]interface{}{"session_id": sessionID}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/sessions/stop", map[string]interface{}{
		"session_id": sessionID,
		"energy_kwh": 20,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := decode(t, rec)["session"].(map[string]interface{})
	require.Equal(t, 60000.0, stopped["total_cost"])

	// Second stop is a state conflict.
	rec = fx.do(t, http.MethodPost, "/sessions/stop", map[string]interface{}{
		"session_id": sessionID,
		"energy_kwh": 5,
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettleOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	auth := map[string]string{"Authorization": "Bearer " + driverToken(t, "acc-1")}

	rec := fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decode(t, rec)["session"].(map[string]interface{})["id"].(string)

	// Settling before stop is a conflict.
	rec = fx.do(t, http.MethodPost, "/payments/settle", map[string]string{
		"session_id": sessionID, "method": "WALLET",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = fx.do(t, http.MethodPost, "/sessions/stop", map[string]interface{}{
		"session_id": sessionID, "energy_kwh": 20,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/payments/settle", map[string]string{
		"session_id": sessionID, "method": "BARTER",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/payments/settle", map[string]string{
		"session_id": sessionID, "method": "WALLET",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	settled := decode(t, rec)
	require.Equal(t, 40000.0, settled["wallet_balance"])

	// Repeat settle is rejected.
	rec = fx.do(t, http.MethodPost, "/payments/settle", map[string]string{
		"session_id": sessionID, "method": "CASH",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// The invoice is available afterwards.
	rec = fx.do(t, http.MethodGet, "/payments/invoice?session_id="+sessionID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invoice := decode(t, rec)
	payment := invoice["payment"].(map[string]interface{})
	require.Equal(t, 60000.0, payment["amount"])
	require.Equal(t, "WALLET", payment["method"])
}

func TestSettleInsufficientFundsOverHTTP(t *testing.T) {
	fx := newAPIFixture(t)
	fx.store.PutAccount(models.Account{ID: "acc-1", Balance: 1000})
	auth := map[string]string{"Authorization": "Bearer " + driverToken(t, "acc-1")}

	rec := fx.do(t, http.MethodPost, "/sessions/start", map[string]string{"charger_id": "charger-1"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := decode(t, rec)["session"].(map[string]interface{})["id"].(string)

	rec = fx.do(t, http.MethodPost, "/sessions/stop", map[string]interface{}{
		"session_id": sessionID, "energy_kwh": 20,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/payments/settle", map[string]string{
		"session_id": sessionID, "method": "WALLET",
	}, nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestStaffEndpointsRequireAPIKey(t *testing.T) {
	fx := newAPIFixture(t)
	body := map[string]string{"charger_id": "charger-1", "description": "screen dead"}

	rec := fx.do(t, http.MethodPost, "/staff/chargers/fault", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/staff/chargers/fault", body, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/staff/chargers/fault", body, map[string]string{"X-API-Key": testStaffKey})
	require.Equal(t, http.StatusOK, rec.Code)
	charger := decode(t, rec)["charger"].(map[string]interface{})
	require.Equal(t, "OUT_OF_ORDER", charger["status"])
}

func TestStaffWalkInStart(t *testing.T) {
	fx := newAPIFixture(t)
	staffAuth := map[string]string{"X-API-Key": testStaffKey}

	rec := fx.do(t, http.MethodPost, "/staff/sessions/start", map[string]string{
		"charger_id":    "charger-1",
		"vehicle_plate": "AB123CD",
	}, staffAuth)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode(t, rec)["session"].(map[string]interface{})
	require.Nil(t, session["account_id"])
	require.Equal(t, "AB123CD", session["vehicle_plate"])
}

func TestWalletEndpoints(t *testing.T) {
	fx := newAPIFixture(t)
	auth := map[string]string{"Authorization": "Bearer " + driverToken(t, "acc-1")}

	rec := fx.do(t, http.MethodGet, "/wallet/balance", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 100000.0, decode(t, rec)["balance"])

	rec = fx.do(t, http.MethodPost, "/wallet/topup", map[string]float64{"amount": 50000}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 150000.0, decode(t, rec)["balance"])

	rec = fx.do(t, http.MethodPost, "/wallet/topup", map[string]float64{"amount": -1}, auth)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowedAndHealth(t *testing.T) {
	fx := newAPIFixture(t)

	rec := fx.do(t, http.MethodGet, "/payments/settle", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = fx.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/payments/methods", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
