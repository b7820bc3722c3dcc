package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargenet/internal/events"
	"chargenet/internal/ledger"
	"chargenet/internal/models"
	"chargenet/internal/registry"
	"chargenet/internal/settlement"
	"chargenet/internal/storage/memstore"
	"chargenet/internal/wallet"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type serviceFixture struct {
	svc   *Service
	reg   *registry.Registry
	store *memstore.Store
	sink  *recordingSink
}

func newServiceFixture(t *testing.T, chargers ...models.Charger) serviceFixture {
	t.Helper()
	store := memstore.New()
	for _, c := range chargers {
		store.PutCharger(c)
	}
	store.PutAccount(models.Account{ID: "acc-1", Balance: 100000})

	logger := zap.NewNop()
	reg := registry.New(store.Chargers(), logger)
	ldg := ledger.New(store.Sessions(), reg, logger)
	wlt := wallet.NewService(store.Accounts(), logger)
	stl := settlement.NewService(store.Sessions(), store.Payments(), wlt, logger)

	sink := &recordingSink{}
	feed := events.NewFanout()
	feed.Add(sink)

	svc := New(ldg, stl, reg, wlt, store.Sessions(), nil, feed, logger)
	return serviceFixture{svc: svc, reg: reg, store: store, sink: sink}
}

func charger(id string, price float64) models.Charger {
	return models.Charger{
		ID:          id,
		StationID:   "station-1",
		StationName: "Central",
		Status:      models.ChargerAvailable,
		PowerKW:     50,
		PricePerKWh: price,
	}
}

func TestStartStopSettleFlow(t *testing.T) {
	fx := newServiceFixture(t, charger("charger-1", 3000))
	ctx := context.Background()
	accountID := "acc-1"

	session, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1", AccountID: &accountID})
	require.NoError(t, err)
	require.Equal(t, models.SessionActive, session.Status)

	// Starting on the now occupied charger fails.
	_, err = fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.ErrorIs(t, err, registry.ErrChargerUnavailable)

	stopped, err := fx.svc.StopSession(ctx, StopInput{SessionID: session.ID, EnergyKWh: 20})
	require.NoError(t, err)
	require.Equal(t, 60000.0, stopped.TotalCost)

	payment, err := fx.svc.Settle(ctx, session.ID, models.MethodWallet)
	require.NoError(t, err)
	require.Equal(t, 60000.0, payment.Amount)

	balance, err := fx.svc.Wallet().GetBalance(ctx, accountID)
	require.NoError(t, err)
	require.Equal(t, 40000.0, balance)

	require.Equal(t, []events.Type{
		events.TypeSessionStarted,
		events.TypeSessionStopped,
		events.TypePaymentSettled,
	}, fx.sink.types())

	// The charger is free for the next driver.
	next, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.NoError(t, err)
	require.NotEqual(t, session.ID, next.ID)
}

func TestStopUsesPriceAtStopTime(t *testing.T) {
	fx := newServiceFixture(t, charger("charger-1", 3000))
	ctx := context.Background()

	session, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.NoError(t, err)

	fx.store.PutCharger(func() models.Charger {
		c := charger("charger-1", 3500)
		c.Status = models.ChargerOccupied
		return c
	}())

	stopped, err := fx.svc.StopSession(ctx, StopInput{SessionID: session.ID, EnergyKWh: 10})
	require.NoError(t, err)
	require.Equal(t, 3500.0, stopped.PricePerKWh)
	require.Equal(t, 35000.0, stopped.TotalCost)
}

func TestReportFaultCancelsActiveSession(t *testing.T) {
	fx := newServiceFixture(t, charger("charger-1", 3000))
	ctx := context.Background()

	session, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.NoError(t, err)

	faulted, err := fx.svc.ReportFault(ctx, "charger-1", "connector jammed")
	require.NoError(t, err)
	require.Equal(t, models.ChargerOutOfOrder, faulted.Status)
	require.Equal(t, "connector jammed", faulted.FaultReason)

	// The session was cancelled and the fault status survived its release.
	cancelled, err := fx.store.Sessions().Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionCancelled, cancelled.Status)

	current, err := fx.reg.Get(ctx, "charger-1")
	require.NoError(t, err)
	require.Equal(t, models.ChargerOutOfOrder, current.Status)

	_, err = fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.ErrorIs(t, err, registry.ErrChargerUnavailable)
}

func TestSessionByTokenAndDetail(t *testing.T) {
	fx := newServiceFixture(t, charger("charger-1", 3000))
	ctx := context.Background()

	session, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1"})
	require.NoError(t, err)

	// Pin the clock one hour past the start to make the estimate deterministic.
	fx.svc.now = func() time.Time { return session.StartTime.Add(time.Hour) }

	proj, err := fx.svc.SessionByToken(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.ID, proj.Session.ID)
	require.Equal(t, int64(3600), proj.ElapsedSeconds)
	require.InDelta(t, 50.0, proj.EstimatedEnergyKWh, 1e-9)
	require.InDelta(t, 150000.0, proj.EstimatedCost, 1e-9)

	_, err = fx.svc.SessionByToken(ctx, "no-such-token")
	require.ErrorIs(t, err, ledger.ErrSessionNotFound)

	detail, err := fx.svc.SessionDetail(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, "Central", detail.Charger.StationName)
}

func TestSpendingAggregatesCompletedSessions(t *testing.T) {
	fx := newServiceFixture(t, charger("charger-1", 3000), charger("charger-2", 2000))
	ctx := context.Background()
	accountID := "acc-1"

	first, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1", AccountID: &accountID})
	require.NoError(t, err)
	_, err = fx.svc.StopSession(ctx, StopInput{SessionID: first.ID, EnergyKWh: 10})
	require.NoError(t, err)

	second, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-2", AccountID: &accountID})
	require.NoError(t, err)
	_, err = fx.svc.StopSession(ctx, StopInput{SessionID: second.ID, EnergyKWh: 5})
	require.NoError(t, err)

	// A cancelled session contributes nothing.
	third, err := fx.svc.StartSession(ctx, StartInput{ChargerID: "charger-1", AccountID: &accountID})
	require.NoError(t, err)
	_, err = fx.svc.CancelSession(ctx, third.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	summary, err := fx.svc.Spending(ctx, accountID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, summary.SessionCount)
	require.Equal(t, 40000.0, summary.TotalSpending)
	require.Equal(t, 20000.0, summary.AvgPerSession)
}

// TestConcurrentLifecycleInvariants hammers a small charger pool with random
// start/stop pairs and checks the core invariants afterwards: at most one
// ACTIVE session per charger, and a charger is OCCUPIED exactly when it has one.
func TestConcurrentLifecycleInvariants(t *testing.T) {
	chargerIDs := []string{"charger-1", "charger-2", "charger-3"}
	fx := newServiceFixture(t,
		charger("charger-1", 3000),
		charger("charger-2", 3000),
		charger("charger-3", 3000),
	)
	ctx := context.Background()

	const workers = 24
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for j := 0; j < 50; j++ {
				id := chargerIDs[rng.Intn(len(chargerIDs))]
				session, err := fx.svc.StartSession(ctx, StartInput{ChargerID: id})
				if err != nil {
					continue
				}
				if rng.Intn(2) == 0 {
					_, _ = fx.svc.StopSession(ctx, StopInput{SessionID: session.ID, EnergyKWh: 1})
				} else {
					_, _ = fx.svc.CancelSession(ctx, session.ID)
				}
			}
		}(int64(i))
	}
	wg.Wait()

	active, err := fx.svc.ActiveSessions(ctx, 0)
	require.NoError(t, err)

	perCharger := map[string]int{}
	for _, proj := range active {
		perCharger[proj.Session.ChargerID]++
	}
	for id, count := range perCharger {
		require.LessOrEqual(t, count, 1, "charger %s has %d active sessions", id, count)
	}
	for _, id := range chargerIDs {
		current, err := fx.reg.Get(ctx, id)
		require.NoError(t, err)
		if perCharger[id] == 1 {
			require.Equal(t, models.ChargerOccupied, current.Status)
		} else {
			require.Equal(t, models.ChargerAvailable, current.Status)
		}
	}
}
