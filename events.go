package x402

import (
	"math/big"
	"sync"
)

// PaymentEventType represents types of payment events
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "attempt"
	PaymentEventSuccess PaymentEventType = "success"
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent represents a payment lifecycle event
type PaymentEvent struct {
	Type        PaymentEventType
	URL         string
	Method      string
	Amount      *big.Int
	Network     string
	Asset       string
	Recipient   string
	Transaction string
	Error       error
	Timestamp   int64
}

// PaymentRecorder records payment events for testing
type PaymentRecorder struct {
	mu     sync.RWMutex
	events []PaymentEvent
}

// NewPaymentRecorder creates a new payment recorder
func NewPaymentRecorder() *PaymentRecorder {
	return &PaymentRecorder{events: make([]PaymentEvent, 0)}
}

// Record records a payment event
func (r *PaymentRecorder) Record(event PaymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// EventCount returns the number of recorded events
func (r *PaymentRecorder) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// LastEvent returns a copy of the most recent event, or nil
func (r *PaymentRecorder) LastEvent() *PaymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.events) == 0 {
		return nil
	}
	eventCopy := r.events[len(r.events)-1]
	if eventCopy.Amount != nil {
		eventCopy.Amount = new(big.Int).Set(eventCopy.Amount)
	}
	return &eventCopy
}

// Events returns copies of all recorded events
func (r *PaymentRecorder) Events() []PaymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]PaymentEvent, len(r.events))
	for i, event := range r.events {
		events[i] = event
		if event.Amount != nil {
			events[i].Amount = new(big.Int).Set(event.Amount)
		}
	}
	return events
}

// SuccessfulPayments returns copies of success events only
func (r *PaymentRecorder) SuccessfulPayments() []PaymentEvent {
	return r.filter(PaymentEventSuccess)
}

// FailedPayments returns copies of failure events only
func (r *PaymentRecorder) FailedPayments() []PaymentEvent {
	return r.filter(PaymentEventFailure)
}

func (r *PaymentRecorder) filter(kind PaymentEventType) []PaymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []PaymentEvent
	for _, event := range r.events {
		if event.Type == kind {
			eventCopy := event
			if event.Amount != nil {
				eventCopy.Amount = new(big.Int).Set(event.Amount)
			}
			matched = append(matched, eventCopy)
		}
	}
	return matched
}

// TotalAmount returns the summed amount of all successful payments
func (r *PaymentRecorder) TotalAmount() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := big.NewInt(0)
	for _, event := range r.events {
		if event.Type == PaymentEventSuccess && event.Amount != nil {
			total.Add(total, event.Amount)
		}
	}
	return total.String()
}

// Clear clears all recorded events
func (r *PaymentRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = r.events[:0]
}
