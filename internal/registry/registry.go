package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

var (
	// ErrChargerNotFound indicates an unknown charger id.
	ErrChargerNotFound = errors.New("registry: charger not found")
	// ErrChargerUnavailable indicates the charger cannot be reserved in its current status.
	ErrChargerUnavailable = errors.New("registry: charger unavailable")
)

// Registry owns charger availability status. Reserve and Release are
// linearizable per charger id through conditional status transitions
// at the storage layer.
type Registry struct {
	chargers storage.ChargerStore
	logger   *zap.Logger
}

// New builds registry.
func New(chargers storage.ChargerStore, logger *zap.Logger) *Registry {
	return &Registry{chargers: chargers, logger: logger}
}

// Get returns a charger snapshot.
func (r *Registry) Get(ctx context.Context, chargerID string) (*models.Charger, error) {
	charger, err := r.chargers.Get(ctx, chargerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrChargerNotFound
		}
		return nil, fmt.Errorf("registry: get charger: %w", err)
	}
	return charger, nil
}

// Reserve transitions AVAILABLE -> OCCUPIED. Two concurrent reserves on the
// same charger resolve to exactly one winner.
func (r *Registry) Reserve(ctx context.Context, chargerID string) (*models.Charger, error) {
	charger, err := r.chargers.TransitionStatus(ctx, chargerID, models.ChargerAvailable, models.ChargerOccupied)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrChargerNotFound
		case errors.Is(err, storage.ErrConflict):
			return nil, ErrChargerUnavailable
		}
		return nil, fmt.Errorf("registry: reserve charger: %w", err)
	}
	return charger, nil
}

// Release transitions OCCUPIED -> AVAILABLE. An already-available charger is
// a no-op so retried releases stay safe.
func (r *Registry) Release(ctx context.Context, chargerID string) error {
	_, err := r.chargers.TransitionStatus(ctx, chargerID, models.ChargerOccupied, models.ChargerAvailable)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrChargerNotFound
		case errors.Is(err, storage.ErrConflict):
			return nil
		}
		return fmt.Errorf("registry: release charger: %w", err)
	}
	return nil
}

// MarkFault forces OUT_OF_ORDER regardless of the current status.
func (r *Registry) MarkFault(ctx context.Context, chargerID, reason string) (*models.Charger, error) {
	charger, err := r.chargers.SetStatus(ctx, chargerID, models.ChargerOutOfOrder, reason)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrChargerNotFound
		}
		return nil, fmt.Errorf("registry: mark fault: %w", err)
	}
	r.logger.Warn("charger marked out of order",
		zap.String("charger_id", chargerID),
		zap.String("reason", reason),
	)
	return charger, nil
}
