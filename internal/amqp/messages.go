package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by ledger event messages.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRestored = "restored"
)

// LedgerEventMessage notifies the worker that the ledger changed.
// It carries only identifiers, the worker fetches the full record
// from the database when it needs one.
type LedgerEventMessage struct {
	Action        string    `json:"action"`
	Kind          string    `json:"kind,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FamilyCode    string    `json:"family_code"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(action, kind, transactionID, familyCode string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Action:        action,
		Kind:          kind,
		TransactionID: transactionID,
		FamilyCode:    familyCode,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
