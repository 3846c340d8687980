package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names delivered to the notification collaborator.
const (
	TypeBookingRequested    = "booking.requested.v1"
	TypeBookingConfirmed    = "booking.confirmed.v1"
	TypeBookingRejected     = "booking.rejected.v1"
	TypeBookingCancelled    = "booking.cancelled.v1"
	TypeBookingRescheduled  = "booking.rescheduled.v1"
	TypeLeaveCascadeCancels = "leave.cascade_cancelled.v1"
)

// CanonicalEvent is a versioned domain event payload.
type CanonicalEvent interface {
	EventType() string
}

// WindowV1 is a [start, end) interval on the wire.
type WindowV1 struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookingEventV1 describes one booking transition. Kind selects which of the
// booking.* event types it is published as.
type BookingEventV1 struct {
	Kind              string     `json:"-"`
	BookingID         uuid.UUID  `json:"booking_id"`
	ProviderID        uuid.UUID  `json:"provider_id"`
	SubjectID         uuid.UUID  `json:"subject_id"`
	ActorID           uuid.UUID  `json:"actor_id"`
	Channel           string     `json:"channel"`
	StartAt           time.Time  `json:"start_at"`
	EndAt             time.Time  `json:"end_at"`
	PreviousStatus    string     `json:"previous_status,omitempty"`
	Status            string     `json:"status"`
	Reason            string     `json:"reason,omitempty"`
	RequestedFeeCents int64      `json:"requested_fee_cents"`
	CancellationFee   int64      `json:"cancellation_fee_cents,omitempty"`
	RescheduleFee     int64      `json:"reschedule_fee_cents,omitempty"`
	RescheduledFromID *uuid.UUID `json:"rescheduled_from_id,omitempty"`
	Alternatives      []WindowV1 `json:"alternatives,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

func (e BookingEventV1) EventType() string {
	if e.Kind == "" {
		return TypeBookingRequested
	}
	return e.Kind
}

// LeaveCascadeV1 tells one subject which of their bookings a provider leave cancelled.
type LeaveCascadeV1 struct {
	LeaveID    uuid.UUID   `json:"leave_id"`
	ProviderID uuid.UUID   `json:"provider_id"`
	SubjectID  uuid.UUID   `json:"subject_id"`
	BookingIDs []uuid.UUID `json:"booking_ids"`
	LeaveStart time.Time   `json:"leave_start"`
	LeaveEnd   time.Time   `json:"leave_end"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (LeaveCascadeV1) EventType() string {
	return TypeLeaveCascadeCancels
}
