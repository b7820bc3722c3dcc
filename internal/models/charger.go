package models

import "time"

// ChargerStatus enumerates charger availability states.
type ChargerStatus string

const (
	ChargerAvailable  ChargerStatus = "AVAILABLE"
	ChargerOccupied   ChargerStatus = "OCCUPIED"
	ChargerOutOfOrder ChargerStatus = "OUT_OF_ORDER"
)

// Charger represents a single charging point belonging to a station.
type Charger struct {
	ID            string        `db:"id" json:"id"`
	StationID     string        `db:"station_id" json:"station_id"`
	StationName   string        `db:"station_name" json:"station_name"`
	ConnectorType string        `db:"connector_type" json:"connector_type"`
	PowerKW       float64       `db:"power_kw" json:"power_kw"`
	PricePerKWh   float64       `db:"price_per_kwh" json:"price_per_kwh"`
	Status        ChargerStatus `db:"status" json:"status"`
	FaultReason   string        `db:"fault_reason" json:"fault_reason,omitempty"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}
