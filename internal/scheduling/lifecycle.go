package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Transition names a lifecycle event.
type Transition string

const (
	TransitionAccept     Transition = "accept"
	TransitionReject     Transition = "reject"
	TransitionCancel     Transition = "cancel"
	TransitionReschedule Transition = "reschedule"
	TransitionComplete   Transition = "complete"
)

var lifecycle = map[BookingStatus]map[Transition]BookingStatus{
	StatusRequested: {
		TransitionAccept: StatusConfirmed,
		TransitionReject: StatusRejected,
		TransitionCancel: StatusCancelled,
	},
	StatusConfirmed: {
		TransitionCancel:     StatusCancelled,
		TransitionReschedule: StatusCancelled,
		TransitionComplete:   StatusCompleted,
	},
}

// NextStatus returns the status reached by applying t to from.
func NextStatus(from BookingStatus, t Transition) (BookingStatus, error) {
	to, ok := lifecycle[from][t]
	if !ok {
		return "", Errorf(KindInvalidState, "cannot %s a %s booking", t, from)
	}
	return to, nil
}

// apply moves b through t and returns the audit row for it. b is only
// modified when the transition is allowed.
func apply(b *Booking, t Transition, actor Actor, reason string, now time.Time) (HistoryEntry, error) {
	to, err := NextStatus(b.Status, t)
	if err != nil {
		return HistoryEntry{}, err
	}
	entry := HistoryEntry{
		ID:             uuid.New(),
		BookingID:      b.ID,
		PreviousStatus: b.Status,
		NewStatus:      to,
		Reason:         reason,
		ActorID:        actor.ID,
		At:             now,
	}
	b.Status = to
	b.UpdatedAt = now
	switch t {
	case TransitionAccept, TransitionReject:
		b.RespondedAt = &now
	case TransitionCancel, TransitionReschedule:
		b.CancelledAt = &now
	}
	return entry, nil
}

// created is the audit row for a new booking.
func created(b *Booking, actor Actor, reason string) HistoryEntry {
	return HistoryEntry{
		ID:        uuid.New(),
		BookingID: b.ID,
		NewStatus: b.Status,
		Reason:    reason,
		ActorID:   actor.ID,
		At:        b.CreatedAt,
	}
}
