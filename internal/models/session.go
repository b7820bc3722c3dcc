package models

import "time"

// SessionStatus enumerates charging session states.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Session represents one charging event from start to stop.
// AccountID is nil for staff-initiated walk-in sessions.
type Session struct {
	ID           string        `db:"id" json:"id"`
	AccountID    *string       `db:"account_id" json:"account_id,omitempty"`
	ChargerID    string        `db:"charger_id" json:"charger_id"`
	VehiclePlate string        `db:"vehicle_plate" json:"vehicle_plate,omitempty"`
	Token        string        `db:"token" json:"token"`
	Status       SessionStatus `db:"status" json:"status"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      *time.Time    `db:"end_time" json:"end_time,omitempty"`
	StartSoc     *int          `db:"start_soc" json:"start_soc,omitempty"`
	EndSoc       *int          `db:"end_soc" json:"end_soc,omitempty"`
	EnergyKWh    float64       `db:"energy_kwh" json:"energy_kwh"`
	PricePerKWh  float64       `db:"price_per_kwh" json:"price_per_kwh"`
	TotalCost    float64       `db:"total_cost" json:"total_cost"`
	PaymentID    string        `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
