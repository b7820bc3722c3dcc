package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargenet/internal/models"
	"chargenet/internal/storage"
)

// SessionStore persists charging sessions in PostgreSQL. Complete and Cancel
// are guarded by the current ACTIVE status, so concurrent stops on the same
// session resolve to a single winner.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore returns store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, account_id, charger_id, vehicle_plate, token, status, start_time, end_time, start_soc, end_soc, energy_kwh, price_per_kwh, total_cost, payment_id, created_at, updated_at`

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	const query = `
		INSERT INTO charging_sessions (id, account_id, charger_id, vehicle_plate, token, status, start_time, start_soc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		session.ID,
		session.AccountID,
		session.ChargerID,
		session.VehiclePlate,
		session.Token,
		session.Status,
		session.StartTime,
		session.StartSoc,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

// Get returns a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE id = $1
	`
	return scanSession(s.db.QueryRowContext(ctx, query, id))
}

// GetByToken returns a session by its correlation token.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE token = $1
	`
	return scanSession(s.db.QueryRowContext(ctx, query, token))
}

// ActiveByCharger returns the ACTIVE session referencing the charger, if any.
func (s *SessionStore) ActiveByCharger(ctx context.Context, chargerID string) (*models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE charger_id = $1 AND status = 'ACTIVE'
		LIMIT 1
	`
	return scanSession(s.db.QueryRowContext(ctx, query, chargerID))
}

// Complete finalizes an ACTIVE session with the priced result.
func (s *SessionStore) Complete(ctx context.Context, id string, endTime time.Time, energyKWh, pricePerKWh, totalCost float64, endSoc *int) (*models.Session, error) {
	const query = `
		UPDATE charging_sessions
		SET status = 'COMPLETED',
		    end_time = $2,
		    energy_kwh = $3,
		    price_per_kwh = $4,
		    total_cost = $5,
		    end_soc = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + sessionColumns + `
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, endTime, energyKWh, pricePerKWh, totalCost, endSoc))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return nil, s.conflictOrMissing(ctx, id)
}

// Cancel terminates an ACTIVE session without cost.
func (s *SessionStore) Cancel(ctx context.Context, id string, endTime time.Time) (*models.Session, error) {
	const query = `
		UPDATE charging_sessions
		SET status = 'CANCELLED',
		    end_time = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + sessionColumns + `
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, endTime))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return nil, s.conflictOrMissing(ctx, id)
}

// SetPaymentRef records the settlement back-reference.
func (s *SessionStore) SetPaymentRef(ctx context.Context, id, paymentID string) error {
	const query = `
		UPDATE charging_sessions
		SET payment_id = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, paymentID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByAccount returns the account's sessions, newest first.
func (s *SessionStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE account_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	return s.list(ctx, query, accountID, limit)
}

// ListActive returns currently ACTIVE sessions, newest first.
func (s *SessionStore) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `
		SELECT ` + sessionColumns + `
		FROM charging_sessions
		WHERE status = 'ACTIVE'
		ORDER BY start_time DESC
		LIMIT $1
	`
	return s.list(ctx, query, limit)
}

func (s *SessionStore) list(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionStore) conflictOrMissing(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return storage.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*models.Session, error) {
	session, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var (
		sess      models.Session
		accountID sql.NullString
		endTime   sql.NullTime
		startSoc  sql.NullInt64
		endSoc    sql.NullInt64
		paymentID sql.NullString
	)
	err := row.Scan(
		&sess.ID,
		&accountID,
		&sess.ChargerID,
		&sess.VehiclePlate,
		&sess.Token,
		&sess.Status,
		&sess.StartTime,
		&endTime,
		&startSoc,
		&endSoc,
		&sess.EnergyKWh,
		&sess.PricePerKWh,
		&sess.TotalCost,
		&paymentID,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if accountID.Valid {
		sess.AccountID = &accountID.String
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}
	if startSoc.Valid {
		v := int(startSoc.Int64)
		sess.StartSoc = &v
	}
	if endSoc.Valid {
		v := int(endSoc.Int64)
		sess.EndSoc = &v
	}
	if paymentID.Valid {
		sess.PaymentID = paymentID.String
	}
	return &sess, nil
}
