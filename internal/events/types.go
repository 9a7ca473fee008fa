// Package events defines the canonical change-event schema shared by the
// write path and the real-time indexer. All consumers MUST use these types
// for event processing.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation represents the type of index operation requested by an event.
type Operation string

const (
	// OpUpsert requests that the entity be re-derived from the system of
	// record and written to the live index.
	OpUpsert Operation = "upsert"

	// OpDelete requests that the entity's document be removed from the
	// live index.
	OpDelete Operation = "delete"
)

// IsValid checks if the operation is a known valid type.
func (o Operation) IsValid() bool {
	switch o {
	case OpUpsert, OpDelete:
		return true
	default:
		return false
	}
}

// EntityQuestion is the only entity type currently wired to the indexer.
// The field is kept on the event so additional entity types can be added
// without changing the wire format.
const EntityQuestion = "question"

// ChangeEvent is a command to re-derive index state for a single entity.
// It deliberately carries no field values: the consumer reads current truth
// from the system of record at apply time, which makes processing idempotent
// and order-independent.
type ChangeEvent struct {
	EventID    string    `json:"eventId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Op         Operation `json:"operation"`
	Timestamp  int64     `json:"timestamp"` // Unix milliseconds
}

// NewChangeEvent creates a ChangeEvent with a fresh event ID and the
// current timestamp.
func NewChangeEvent(entityType, entityID string, op Operation) *ChangeEvent {
	return &ChangeEvent{
		EventID:    uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Op:         op,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Subject returns the pubsub subject the event is published on.
// Format: changes.<entityType>.<entityId>
func (e *ChangeEvent) Subject() string {
	return "changes." + e.EntityType + "." + e.EntityID
}

// Encode serializes the event for transport.
func (e *ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event from its transport form and validates it.
func Decode(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode change event: %w", err)
	}
	if e.EntityID == "" {
		return nil, fmt.Errorf("change event missing entity id")
	}
	if !e.Op.IsValid() {
		return nil, fmt.Errorf("change event has unknown operation %q", e.Op)
	}
	return &e, nil
}
