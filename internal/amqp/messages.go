package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeKind names the part of the dataset that changed.
type ChangeKind string

const (
	KindTransactions ChangeKind = "transactions"
	KindMappings     ChangeKind = "mappings"
	KindOverrides    ChangeKind = "overrides"
)

func (k ChangeKind) Valid() bool {
	switch k {
	case KindTransactions, KindMappings, KindOverrides:
		return true
	}
	return false
}

// DatasetChangedMessage announces a new dataset version. Consumers reload the
// snapshot from storage; the message itself carries no data.
type DatasetChangedMessage struct {
	ID        string     `json:"id"`
	Kind      ChangeKind `json:"kind"`
	Version   int64      `json:"version"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewDatasetChangedMessage stamps a message with a fresh id and the current time.
func NewDatasetChangedMessage(kind ChangeKind, version int64) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetChangedMessageFromJSON decodes and checks a message body.
func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown change kind %q", msg.Kind)
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", msg.ID, err)
	}
	return &msg, nil
}
