package amqp

import (
	"encoding/json"
	"time"
)

// EventKind names what changed in the ledger.
type EventKind string

const (
	EventSubscriptionCreated     EventKind = "subscription.created"
	EventSubscriptionRegenerated EventKind = "subscription.regenerated"
	EventSubscriptionPatched     EventKind = "subscription.patched"
	EventSubscriptionDeleted     EventKind = "subscription.deleted"
	EventSubscriptionAdvanced    EventKind = "subscription.advanced"

	EventTransactionRecorded EventKind = "transaction.recorded"
	EventTransactionUpdated  EventKind = "transaction.updated"
	EventTransactionDeleted  EventKind = "transaction.deleted"
	EventAccountDeleted      EventKind = "account.deleted"
	EventBudgetCreated       EventKind = "budget.created"
	EventBudgetDeleted       EventKind = "budget.deleted"
)

// LedgerEvent is published after a ledger mutation has committed.
// Consumers re-read the ledger for details; the counts are informational.
type LedgerEvent struct {
	Kind           EventKind `json:"kind"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	EntityID       string    `json:"entity_id,omitempty"`
	Change         string    `json:"change,omitempty"`
	Removed        int       `json:"removed"`
	Generated      int       `json:"generated"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with the current time.
func NewLedgerEvent(kind EventKind, subscriptionID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:           kind,
		SubscriptionID: subscriptionID,
		Timestamp:      time.Now(),
	}
}

// NewEntityEvent stamps an event about a transaction, account or budget.
func NewEntityEvent(kind EventKind, entityID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
