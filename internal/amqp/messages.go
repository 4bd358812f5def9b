package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Actions carried by TransactionChanged.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionChanged announces a ledger write. It carries only identifiers
// and the user's revision after the write; consumers read current state from
// the store.
type TransactionChanged struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind"`
	Action        string    `json:"action"`
	Revision      int64     `json:"revision"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionChanged creates an event stamped with the current time.
func NewTransactionChanged(userID, transactionID, kind, action string, revision int64) *TransactionChanged {
	return &TransactionChanged{
		UserID:        userID,
		TransactionID: transactionID,
		Kind:          kind,
		Action:        action,
		Revision:      revision,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionChangedFromJSON decodes and checks an event. A message without a
// user or a positive revision is rejected.
func TransactionChangedFromJSON(data []byte) (*TransactionChanged, error) {
	var msg TransactionChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("missing user_id")
	}
	if msg.Revision <= 0 {
		return nil, errors.New("revision must be positive")
	}
	return &msg, nil
}
