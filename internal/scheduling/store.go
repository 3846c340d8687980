package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
)

// Reader exposes the read side of scheduling storage.
type Reader interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	// ListRules returns the provider's rules, optionally restricted to one
	// channel (empty matches all) and to active rules.
	ListRules(ctx context.Context, providerID uuid.UUID, channel Channel, includeInactive bool) ([]AvailabilityRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*AvailabilityRule, error)
	// ListLeaves returns leaves overlapping window.
	ListLeaves(ctx context.Context, providerID uuid.UUID, window TimeWindow) ([]LeavePeriod, error)
	GetLeave(ctx context.Context, id uuid.UUID) (*LeavePeriod, error)
	// ListActiveBookings returns REQUESTED and CONFIRMED bookings overlapping
	// window, ordered by start.
	ListActiveBookings(ctx context.Context, providerID uuid.UUID, window TimeWindow) ([]Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListHistory(ctx context.Context, bookingID uuid.UUID) ([]HistoryEntry, error)
}

// Tx is a unit of work holding the provider lock. Writes become visible
// together when the callback passed to WithProviderLock returns nil.
type Tx interface {
	Reader
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b *Booking) error
	AppendHistory(ctx context.Context, h HistoryEntry) error
	InsertLeave(ctx context.Context, l *LeavePeriod) error
	DeleteLeave(ctx context.Context, id uuid.UUID) error
	SaveRule(ctx context.Context, r *AvailabilityRule) error
	Enqueue(ctx context.Context, env events.Envelope) error
}

// Store serializes writers per provider. WithProviderLock must release the
// lock on every path and report ErrTemporarilyUnavailable when it cannot be
// acquired within timeout. Stores backed by a database also enforce the
// booking and leave non-overlap invariants with constraints.
type Store interface {
	Reader
	WithProviderLock(ctx context.Context, providerID uuid.UUID, timeout time.Duration, fn func(tx Tx) error) error
}

// SlotCache caches slot listings briefly. Fetch returns the cached listing or
// calls load; cache failures must degrade to calling load.
type SlotCache interface {
	Fetch(ctx context.Context, key SlotKey, load func(ctx context.Context) ([]DaySlots, error)) ([]DaySlots, error)
	Invalidate(ctx context.Context, providerID uuid.UUID)
}

// SlotKey identifies one slot listing.
type SlotKey struct {
	ProviderID uuid.UUID
	Channel    Channel
	Urgency    Urgency
	RangeStart time.Time
	RangeEnd   time.Time
}

// Metrics receives scheduling outcomes. All methods must tolerate concurrent use.
type Metrics interface {
	ObserveBookingAttempt(kind Kind)
	ObserveTransition(from, to BookingStatus)
	ObserveSlotGeneration(d time.Duration)
	ObserveCascade(cancelled, remaining int)
	ObserveLockWait(d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveBookingAttempt(Kind) {}
func (noopMetrics) ObserveTransition(BookingStatus, BookingStatus) {}
func (noopMetrics) ObserveSlotGeneration(time.Duration) {}
func (noopMetrics) ObserveCascade(int, int) {}
func (noopMetrics) ObserveLockWait(time.Duration, error) {}
