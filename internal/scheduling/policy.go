package scheduling

import "time"

// Default lead times surfaced to callers.
const (
	RoutineLeadTime = 2 * time.Hour
	UrgentLeadTime  = 30 * time.Minute
)

// Policy holds the tunable limits of the scheduling core.
type Policy struct {
	RoutineLeadTime    time.Duration
	UrgentLeadTime     time.Duration
	MinBookingDuration time.Duration
	MaxBookingDuration time.Duration
	MaxSlotRange       time.Duration
	MaxLeaveDuration   time.Duration
	LeaveCascadeCap    int
	LockTimeout        time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		RoutineLeadTime:    RoutineLeadTime,
		UrgentLeadTime:     UrgentLeadTime,
		MinBookingDuration: 15 * time.Minute,
		MaxBookingDuration: 120 * time.Minute,
		MaxSlotRange:       30 * 24 * time.Hour,
		MaxLeaveDuration:   365 * 24 * time.Hour,
		LeaveCascadeCap:    50,
		LockTimeout:        5 * time.Second,
	}
}

// Normalize replaces non-positive fields with defaults.
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.RoutineLeadTime <= 0 {
		p.RoutineLeadTime = d.RoutineLeadTime
	}
	if p.UrgentLeadTime <= 0 {
		p.UrgentLeadTime = d.UrgentLeadTime
	}
	if p.MinBookingDuration <= 0 {
		p.MinBookingDuration = d.MinBookingDuration
	}
	if p.MaxBookingDuration < p.MinBookingDuration {
		p.MaxBookingDuration = d.MaxBookingDuration
	}
	if p.MaxSlotRange <= 0 {
		p.MaxSlotRange = d.MaxSlotRange
	}
	if p.MaxLeaveDuration <= 0 {
		p.MaxLeaveDuration = d.MaxLeaveDuration
	}
	if p.LeaveCascadeCap <= 0 {
		p.LeaveCascadeCap = d.LeaveCascadeCap
	}
	if p.LockTimeout <= 0 {
		p.LockTimeout = d.LockTimeout
	}
	return p
}

// LeadTime returns the minimum lead time for the urgency class.
func (p Policy) LeadTime(u Urgency) time.Duration {
	if u == UrgencyUrgent {
		return p.UrgentLeadTime
	}
	return p.RoutineLeadTime
}

// CancellationFee applies the tiered cancellation policy. Each boundary
// belongs to the cheaper tier: exactly 24h before start costs nothing.
func CancellationFee(requestedFee int64, start, now time.Time, by Role) int64 {
	lead := start.Sub(now)
	if by == RoleProvider && lead >= 2*time.Hour {
		return 0
	}
	var pct int64
	switch {
	case lead >= 24*time.Hour:
		pct = 0
	case lead >= 12*time.Hour:
		pct = 25
	case lead >= 2*time.Hour:
		pct = 50
	default:
		pct = 100
	}
	return requestedFee * pct / 100
}

// RescheduleFee is 10% when the original appointment is less than 24h away,
// and never charged when the provider reschedules.
func RescheduleFee(requestedFee int64, originalStart, now time.Time, by Role) int64 {
	if by == RoleProvider {
		return 0
	}
	if originalStart.Sub(now) < 24*time.Hour {
		return requestedFee * 10 / 100
	}
	return 0
}
