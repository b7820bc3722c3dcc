package postgres

import (
	"context"
	"database/sql"
	"errors"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// ChargerStore persists chargers in PostgreSQL. Status transitions use
// conditional updates so reserve/release stay linearizable per charger.
type ChargerStore struct {
	db *sql.DB
}

// NewChargerStore returns store.
func NewChargerStore(db *sql.DB) *ChargerStore {
	return &ChargerStore{db: db}
}

const chargerColumns = `id, station_id, station_name, connector_type, power_kw, price_per_kwh, status, fault_reason, updated_at`

// Get returns a charger snapshot.
func (s *ChargerStore) Get(ctx context.Context, id string) (*models.Charger, error) {
	const query = `
		SELECT ` + chargerColumns + `
		FROM chargers
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// TransitionStatus updates the status only when the current one matches.
func (s *ChargerStore) TransitionStatus(ctx context.Context, id string, from, to models.ChargerStatus) (*models.Charger, error) {
	const query = `
		UPDATE chargers
		SET status = $3,
		    fault_reason = CASE WHEN $3 = 'AVAILABLE' THEN '' ELSE fault_reason END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + chargerColumns + `
	`
	charger, err := s.scanOne(s.db.QueryRowContext(ctx, query, id, from, to))
	if err == nil {
		return charger, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	// No row updated: unknown id or status mismatch.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, storage.ErrConflict
}

// SetStatus forces the status regardless of the current one.
func (s *ChargerStore) SetStatus(ctx context.Context, id string, to models.ChargerStatus, reason string) (*models.Charger, error) {
	const query = `
		UPDATE chargers
		SET status = $2,
		    fault_reason = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + chargerColumns + `
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id, to, reason))
}

func (s *ChargerStore) scanOne(row *sql.Row) (*models.Charger, error) {
	var c models.Charger
	err := row.Scan(
		&c.ID,
		&c.StationID,
		&c.StationName,
		&c.ConnectorType,
		&c.PowerKW,
		&c.PricePerKWh,
		&c.Status,
		&c.FaultReason,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
