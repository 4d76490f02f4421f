package events

import (
	"encoding/json"
	"time"
)

const (
	TypeTransactionCreated = "transaction.created"
	TypeTransactionDeleted = "transaction.deleted"
	TypeRolloverApplied    = "rollover.applied"
)

// TransactionEvent is a lightweight notification about a ledger change.
// It carries identifiers only; consumers fetch the full record themselves.
type TransactionEvent struct {
	Type          string    `json:"type"`
	OwnerID       string    `json:"owner_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CycleKey      string    `json:"cycle_key,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(eventType, ownerID, transactionID string) *TransactionEvent {
	return &TransactionEvent{
		Type:          eventType,
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func NewRolloverEvent(ownerID, transactionID, cycleKey string) *TransactionEvent {
	return &TransactionEvent{
		Type:          TypeRolloverApplied,
		OwnerID:       ownerID,
		TransactionID: transactionID,
		CycleKey:      cycleKey,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
