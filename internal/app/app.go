package app

import (
	"context"
	"database/sql"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargenet/internal/config"
	"chargenet/internal/db"
	"chargenet/internal/events"
	httpserver "chargenet/internal/http"
	"chargenet/internal/http/handlers"
	"chargenet/internal/http/middleware"
	"chargenet/internal/ledger"
	libredis "chargenet/internal/redis"
	"chargenet/internal/redisstore"
	"chargenet/internal/registry"
	"chargenet/internal/service"
	"chargenet/internal/settlement"
	"chargenet/internal/storage"
	"chargenet/internal/storage/memstore"
	"chargenet/internal/storage/postgres"
	"chargenet/internal/wallet"
	"chargenet/internal/ws"
)

// App wires the charging service dependencies.
type App struct {
	server      *httpserver.Server
	hub         *ws.Hub
	db          *sql.DB
	redisClient *goredis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	var (
		chargers storage.ChargerStore
		sessions storage.SessionStore
		payments storage.PaymentStore
		accounts storage.AccountStore
		sqlDB    *sql.DB
	)

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		var err error
		sqlDB, err = db.NewPostgresDB(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		chargers = postgres.NewChargerStore(sqlDB)
		sessions = postgres.NewSessionStore(sqlDB)
		payments = postgres.NewPaymentStore(sqlDB)
		accounts = postgres.NewAccountStore(sqlDB)
	default:
		store := memstore.New()
		chargers = store.Chargers()
		sessions = store.Sessions()
		payments = store.Payments()
		accounts = store.Accounts()
	}

	var (
		redisClient *goredis.Client
		activeStore *redisstore.Store
	)
	if cfg.Redis.Addr != "" {
		var err error
		redisClient, err = libredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			if sqlDB != nil {
				sqlDB.Close()
			}
			return nil, err
		}
		activeStore = redisstore.NewStore(redisClient, cfg.ActiveSessionTTL())
	}

	reg := registry.New(chargers, logger)
	ldg := ledger.New(sessions, reg, logger)
	walletSvc := wallet.NewService(accounts, logger)
	settlementSvc := settlement.NewService(sessions, payments, walletSvc, logger)

	hub := ws.NewHub(logger)
	feed := events.NewFanout()
	feed.Add(hub)

	svc := service.New(ldg, settlementSvc, reg, walletSvc, sessions, activeStore, feed, logger)

	sessionsHandler := handlers.NewSessionsHandler(svc, logger)
	paymentsHandler := handlers.NewPaymentsHandler(svc, logger)
	walletHandler := handlers.NewWalletHandler(walletSvc, logger)
	chargersHandler := handlers.NewChargersHandler(svc, logger)

	driver := middleware.DriverAuth(cfg.Auth.JWTSecret)
	staff := middleware.StaffAuth(cfg.Auth.StaffKeyHash)

	routes := httpserver.Routes{
		DriverStart:    driver(http.HandlerFunc(sessionsHandler.HandleDriverStart)),
		StaffStart:     staff(http.HandlerFunc(sessionsHandler.HandleStaffStart)),
		Stop:           http.HandlerFunc(sessionsHandler.HandleStop),
		Cancel:         staff(http.HandlerFunc(sessionsHandler.HandleCancel)),
		Settle:         http.HandlerFunc(paymentsHandler.HandleSettle),
		Fault:          staff(http.HandlerFunc(chargersHandler.HandleFault)),
		SessionStatus:  http.HandlerFunc(sessionsHandler.HandleStatus),
		SessionDetail:  staff(http.HandlerFunc(sessionsHandler.HandleDetail)),
		SessionsMe:     driver(http.HandlerFunc(sessionsHandler.HandleMySessions)),
		ActiveSessions: staff(http.HandlerFunc(sessionsHandler.HandleActive)),
		Invoice:        http.HandlerFunc(paymentsHandler.HandleInvoice),
		PaymentsMe:     driver(http.HandlerFunc(paymentsHandler.HandleMyPayments)),
		PaymentMethods: http.HandlerFunc(paymentsHandler.HandleMethods),
		Spending:       driver(http.HandlerFunc(paymentsHandler.HandleSpending)),
		WalletBalance:  driver(http.HandlerFunc(walletHandler.HandleBalance)),
		WalletTopUp:    driver(http.HandlerFunc(walletHandler.HandleTopUp)),
		EventsFeed:     staff(hub),
		Health:         handlers.NewHealthHandler(),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		hub:         hub,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the websocket hub ping loop and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
