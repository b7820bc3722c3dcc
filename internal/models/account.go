package models

import "time"

// Account holds a driver's prepaid wallet balance.
type Account struct {
	ID        string    `db:"id" json:"id"`
	Balance   float64   `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
