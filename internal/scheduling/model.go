// Package scheduling turns provider availability into bookable windows and
// governs the booking lifecycle: conflict-free reservation, provider response,
// cancellation and reschedule fees, and leave-driven cascades.
package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery mode of a consultation.
type Channel string

const (
	ChannelOnSite Channel = "on_site"
	ChannelHome   Channel = "home"
	ChannelRemote Channel = "remote"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelOnSite, ChannelHome, ChannelRemote:
		return true
	}
	return false
}

// BookingStatus tracks where a booking is in its lifecycle.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Active reports whether the booking still holds its window.
func (s BookingStatus) Active() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Urgency selects the minimum lead time applied to a request.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyUrgent  Urgency = "urgent"
)

// Role is the part an actor plays relative to a booking.
type Role string

const (
	RoleSubject  Role = "subject"
	RoleProvider Role = "provider"
	// RoleOperator is back-office tooling; it may only sweep leaves.
	RoleOperator Role = "operator"
)

// Actor is the authenticated caller, as supplied by the identity collaborator.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Provider offers consultations on one or more channels.
type Provider struct {
	ID          uuid.UUID         `json:"id"`
	DisplayName string            `json:"display_name"`
	TimeZone    string            `json:"time_zone"`
	Active      bool              `json:"active"`
	Fees        map[Channel]int64 `json:"fees_cents"`
}

// Offers reports whether the provider accepts bookings on channel.
func (p *Provider) Offers(ch Channel) bool {
	if p == nil {
		return false
	}
	_, ok := p.Fees[ch]
	return ok
}

// Location returns the provider's time zone, UTC when unset or unknown.
func (p *Provider) Location() *time.Location {
	if p == nil || p.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24-hour format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText encodes the time as "HH:MM".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts "HH:MM", plus "24:00" for end of day.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	if string(b) == "24:00" {
		*t = endOfDay
		return nil
	}
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// On returns the instant at this wall-clock time on the given local date.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, loc)
}

// AvailabilityRule describes open hours for one weekday (recurring) or one
// calendar date (date-specific) on one channel.
type AvailabilityRule struct {
	ID          uuid.UUID    `json:"id"`
	ProviderID  uuid.UUID    `json:"provider_id"`
	Channel     Channel      `json:"channel"`
	Recurring   bool         `json:"recurring"`
	Weekday     time.Weekday `json:"weekday"`
	Date        *time.Time   `json:"date,omitempty"`
	StartTime   TimeOfDay    `json:"start_time"`
	EndTime     TimeOfDay    `json:"end_time"`
	SlotMinutes int          `json:"slot_minutes"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SlotDuration is the rule's window length.
func (r AvailabilityRule) SlotDuration() time.Duration {
	return time.Duration(r.SlotMinutes) * time.Minute
}

// AppliesOn reports whether a date-specific rule targets the given local date.
func (r AvailabilityRule) AppliesOn(day time.Time) bool {
	if r.Recurring || r.Date == nil {
		return false
	}
	return sameDate(*r.Date, day)
}

// LeavePeriod is a span during which the provider takes no appointments.
type LeavePeriod struct {
	ID            uuid.UUID `json:"id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Reason        string    `json:"reason"`
	CascadeCancel bool      `json:"cascade_cancel"`
	CreatedAt     time.Time `json:"created_at"`
}

// Window returns the leave as a time window.
func (l LeavePeriod) Window() TimeWindow {
	return TimeWindow{Start: l.StartAt, End: l.EndAt}
}

// Booking is a subject's reservation of a provider window.
type Booking struct {
	ID                uuid.UUID     `json:"id"`
	ProviderID        uuid.UUID     `json:"provider_id"`
	SubjectID         uuid.UUID     `json:"subject_id"`
	Channel           Channel       `json:"channel"`
	StartAt           time.Time     `json:"start_at"`
	EndAt             time.Time     `json:"end_at"`
	Status            BookingStatus `json:"status"`
	Urgency           Urgency       `json:"urgency"`
	Notes             string        `json:"notes,omitempty"`
	RequestedFee      int64         `json:"requested_fee_cents"`
	CancellationFee   int64         `json:"cancellation_fee_cents"`
	RescheduleFee     int64         `json:"reschedule_fee_cents"`
	RescheduledFromID *uuid.UUID    `json:"rescheduled_from_id,omitempty"`
	SupersededByID    *uuid.UUID    `json:"superseded_by_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	RespondedAt       *time.Time    `json:"responded_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
}

// Window returns the booked interval.
func (b Booking) Window() TimeWindow {
	return TimeWindow{Start: b.StartAt, End: b.EndAt}
}

// IsParty reports whether the actor is the booking's subject or provider.
func (b Booking) IsParty(a Actor) bool {
	switch a.Role {
	case RoleSubject:
		return a.ID == b.SubjectID
	case RoleProvider:
		return a.ID == b.ProviderID
	}
	return false
}

// Counterpart returns the party to notify when actor changes the booking.
func (b Booking) Counterpart(a Actor) uuid.UUID {
	if a.Role == RoleProvider {
		return b.SubjectID
	}
	return b.ProviderID
}

// HistoryEntry is one append-only audit row per booking transition.
type HistoryEntry struct {
	ID             uuid.UUID     `json:"id"`
	BookingID      uuid.UUID     `json:"booking_id"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	NewStatus      BookingStatus `json:"new_status"`
	Reason         string        `json:"reason,omitempty"`
	ActorID        uuid.UUID     `json:"actor_id"`
	At             time.Time     `json:"at"`
}

// TimeWindow is a half-open [Start, End) interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps is the half-open interval overlap test.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether o lies entirely inside w.
func (w TimeWindow) Contains(o TimeWindow) bool {
	return !o.Start.Before(w.Start) && !o.End.After(w.End)
}

// Duration is End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
