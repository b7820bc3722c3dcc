package events

import (
	"sync"
	"time"

	"chargenet/internal/models"
)

// Type names a lifecycle event.
type Type string

const (
	TypeSessionStarted   Type = "session.started"
	TypeSessionStopped   Type = "session.stopped"
	TypeSessionCancelled Type = "session.cancelled"
	TypePaymentSettled   Type = "payment.settled"
	TypeChargerFault     Type = "charger.fault"
)

// Event carries read-only snapshots for notification sinks. Sinks never
// mutate the records they receive.
type Event struct {
	Type    Type            `json:"type"`
	Time    time.Time       `json:"time"`
	Session *models.Session `json:"session,omitempty"`
	Payment *models.Payment `json:"payment,omitempty"`
	Charger *models.Charger `json:"charger,omitempty"`
}

// Sink consumes lifecycle events.
type Sink interface {
	Publish(event Event)
}

// Fanout dispatches events to every registered sink.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout returns an empty fan-out publisher.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers a sink.
func (f *Fanout) Add(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

// Publish delivers the event to all sinks.
func (f *Fanout) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.Publish(event)
	}
}
