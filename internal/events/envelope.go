package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is an outbox row: a canonical event addressed to one recipient.
type Envelope struct {
	ID          uuid.UUID       `json:"event_id"`
	Type        string          `json:"event_type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

var (
	errNilEvent         = errors.New("events: canonical event required")
	errMissingRecipient = errors.New("events: recipient is required")
)

// NewEnvelope marshals evt for delivery to recipient.
func NewEnvelope(aggregateID, recipientID uuid.UUID, evt CanonicalEvent, now time.Time) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	if recipientID == uuid.Nil {
		return Envelope{}, errMissingRecipient
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", evt.EventType(), err)
	}
	return Envelope{
		ID:          uuid.New(),
		Type:        evt.EventType(),
		AggregateID: aggregateID,
		RecipientID: recipientID,
		Payload:     payload,
		CreatedAt:   now.UTC(),
	}, nil
}
