package httpserver

import "net/http"

// Routes groups handlers. Driver routes are expected to be wrapped with the
// driver auth middleware and staff routes with the staff key middleware
// before being placed here.
type Routes struct {
	DriverStart    http.Handler
	StaffStart     http.Handler
	Stop           http.Handler
	Cancel         http.Handler
	Settle         http.Handler
	Fault          http.Handler
	SessionStatus  http.Handler
	SessionDetail  http.Handler
	SessionsMe     http.Handler
	ActiveSessions http.Handler
	Invoice        http.Handler
	PaymentsMe     http.Handler
	PaymentMethods http.Handler
	Spending       http.Handler
	WalletBalance  http.Handler
	WalletTopUp    http.Handler
	EventsFeed     http.Handler
	Health         http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	register(mux, http.MethodPost, "/sessions/start", routes.DriverStart)
	register(mux, http.MethodPost, "/staff/sessions/start", routes.StaffStart)
	register(mux, http.MethodPost, "/sessions/stop", routes.Stop)
	register(mux, http.MethodPost, "/staff/sessions/cancel", routes.Cancel)
	register(mux, http.MethodPost, "/payments/settle", routes.Settle)
	register(mux, http.MethodPost, "/staff/chargers/fault", routes.Fault)
	register(mux, http.MethodGet, "/sessions/status", routes.SessionStatus)
	register(mux, http.MethodGet, "/sessions/detail", routes.SessionDetail)
	register(mux, http.MethodGet, "/sessions/me", routes.SessionsMe)
	register(mux, http.MethodGet, "/staff/sessions/active", routes.ActiveSessions)
	register(mux, http.MethodGet, "/payments/invoice", routes.Invoice)
	register(mux, http.MethodGet, "/payments/me", routes.PaymentsMe)
	register(mux, http.MethodGet, "/payments/methods", routes.PaymentMethods)
	register(mux, http.MethodGet, "/payments/spending", routes.Spending)
	register(mux, http.MethodGet, "/wallet/balance", routes.WalletBalance)
	register(mux, http.MethodPost, "/wallet/topup", routes.WalletTopUp)
	register(mux, http.MethodGet, "/ws/events", routes.EventsFeed)
	register(mux, http.MethodGet, "/health", routes.Health)
	return mux
}

func register(mux *http.ServeMux, expected, path string, handler http.Handler) {
	if handler == nil {
		return
	}
	mux.Handle(path, method(expected, handler))
}

func method(expected string, handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	}
}
