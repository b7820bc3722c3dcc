package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargenet/internal/models"
	"chargenet/internal/storage/memstore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store := memstore.New()
	store.PutCharger(models.Charger{
		ID:          "charger-1",
		StationID:   "station-1",
		Status:      models.ChargerAvailable,
		PricePerKWh: 3000,
	})
	return New(store.Chargers(), zap.NewNop())
}

func TestReserveTransitionsToOccupied(t *testing.T) {
	reg := newTestRegistry(t)

	charger, err := reg.Reserve(context.Background(), "charger-1")
	require.NoError(t, err)
	require.Equal(t, models.ChargerOccupied, charger.Status)

	_, err = reg.Reserve(context.Background(), "charger-1")
	require.ErrorIs(t, err, ErrChargerUnavailable)
}

func TestReserveUnknownCharger(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Reserve(context.Background(), "no-such-charger")
	require.ErrorIs(t, err, ErrChargerNotFound)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	reg := newTestRegistry(t)

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = reg.Reserve(context.Background(), "charger-1")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, ErrChargerUnavailable)
			conflicts++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, attempts-1, conflicts)
}

func TestReleaseIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Reserve(context.Background(), "charger-1")
	require.NoError(t, err)

	require.NoError(t, reg.Release(context.Background(), "charger-1"))
	// Retried release on an already-available charger is a no-op.
	require.NoError(t, reg.Release(context.Background(), "charger-1"))

	charger, err := reg.Get(context.Background(), "charger-1")
	require.NoError(t, err)
	require.Equal(t, models.ChargerAvailable, charger.Status)
}

func TestMarkFaultFromAnyState(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Reserve(context.Background(), "charger-1")
	require.NoError(t, err)

	charger, err := reg.MarkFault(context.Background(), "charger-1", "connector jammed")
	require.NoError(t, err)
	require.Equal(t, models.ChargerOutOfOrder, charger.Status)
	require.Equal(t, "connector jammed", charger.FaultReason)

	// Release does not resurrect a faulted charger.
	require.NoError(t, reg.Release(context.Background(), "charger-1"))
	charger, err = reg.Get(context.Background(), "charger-1")
	require.NoError(t, err)
	require.Equal(t, models.ChargerOutOfOrder, charger.Status)

	_, err = reg.MarkFault(context.Background(), "missing", "whatever")
	require.ErrorIs(t, err, ErrChargerNotFound)
}
