package models

import "time"

// PaymentMethod enumerates supported settlement methods.
type PaymentMethod string

const (
	MethodWallet PaymentMethod = "WALLET"
	MethodCash   PaymentMethod = "CASH"
	MethodCard   PaymentMethod = "CARD"
)

// ValidMethod reports whether m is a known settlement method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodWallet, MethodCash, MethodCard:
		return true
	}
	return false
}

// PaymentStatus enumerates payment record states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment records the settlement of a completed session.
type Payment struct {
	ID        string        `db:"id" json:"id"`
	SessionID string        `db:"session_id" json:"session_id"`
	AccountID *string       `db:"account_id" json:"account_id,omitempty"`
	Amount    float64       `db:"amount" json:"amount"`
	Method    PaymentMethod `db:"method" json:"method"`
	Status    PaymentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
