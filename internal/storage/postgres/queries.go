package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// queries implements scheduling.Reader over any Querier.
type queries struct {
	q Querier
}

const bookingColumns = `id, provider_id, subject_id, channel, start_at, end_at, status, urgency, notes,
	requested_fee_cents, cancellation_fee_cents, reschedule_fee_cents, rescheduled_from_id, superseded_by_id,
	created_at, updated_at, responded_at, cancelled_at`

const ruleColumns = `id, provider_id, channel, recurring, weekday, rule_date, start_minute, end_minute,
	slot_minutes, active, created_at, updated_at`

func (r queries) GetProvider(ctx context.Context, id uuid.UUID) (*scheduling.Provider, error) {
	p := &scheduling.Provider{Fees: map[scheduling.Channel]int64{}}
	err := r.q.QueryRow(ctx, `
		SELECT id, display_name, time_zone, active
		FROM providers
		WHERE id = $1`, id).Scan(&p.ID, &p.DisplayName, &p.TimeZone, &p.Active)
	if err != nil {
		return nil, translate("get provider", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT channel, fee_cents
		FROM provider_channels
		WHERE provider_id = $1`, id)
	if err != nil {
		return nil, translate("list provider channels", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ch string
		var fee int64
		if err := rows.Scan(&ch, &fee); err != nil {
			return nil, translate("scan provider channel", err)
		}
		p.Fees[scheduling.Channel(ch)] = fee
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list provider channels", err)
	}
	return p, nil
}

func (r queries) ListRules(ctx context.Context, providerID uuid.UUID, channel scheduling.Channel, includeInactive bool) ([]scheduling.AvailabilityRule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE provider_id = $1 AND ($2 = '' OR channel = $2) AND ($3 OR active)
		ORDER BY created_at ASC`, providerID, string(channel), includeInactive)
	if err != nil {
		return nil, translate("list rules", err)
	}
	defer rows.Close()

	var out []scheduling.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, translate("scan rule", err)
		}
		out = append(out, *rule)
	}
	return out, translate("list rules", rows.Err())
}

func (r queries) GetRule(ctx context.Context, id uuid.UUID) (*scheduling.AvailabilityRule, error) {
	rule, err := scanRule(r.q.QueryRow(ctx, `SELECT `+ruleColumns+` FROM availability_rules WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get rule", err)
	}
	return rule, nil
}

func (r queries) ListLeaves(ctx context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.LeavePeriod, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, provider_id, start_at, end_at, reason, cascade_cancel, created_at
		FROM leave_periods
		WHERE provider_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at ASC`, providerID, window.Start, window.End)
	if err != nil {
		return nil, translate("list leaves", err)
	}
	defer rows.Close()

	var out []scheduling.LeavePeriod
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, translate("scan leave", err)
		}
		out = append(out, *l)
	}
	return out, translate("list leaves", rows.Err())
}

func (r queries) GetLeave(ctx context.Context, id uuid.UUID) (*scheduling.LeavePeriod, error) {
	l, err := scanLeave(r.q.QueryRow(ctx, `
		SELECT id, provider_id, start_at, end_at, reason, cascade_cancel, created_at
		FROM leave_periods
		WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get leave", err)
	}
	return l, nil
}

func (r queries) ListActiveBookings(ctx context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.Booking, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1 AND status IN ('requested', 'confirmed') AND start_at < $3 AND end_at > $2
		ORDER BY start_at ASC`, providerID, window.Start, window.End)
	if err != nil {
		return nil, translate("list bookings", err)
	}
	defer rows.Close()

	var out []scheduling.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, translate("scan booking", err)
		}
		out = append(out, *b)
	}
	return out, translate("list bookings", rows.Err())
}

func (r queries) GetBooking(ctx context.Context, id uuid.UUID) (*scheduling.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get booking", err)
	}
	return b, nil
}

func (r queries) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]scheduling.HistoryEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, booking_id, previous_status, new_status, reason, actor_id, at
		FROM booking_history
		WHERE booking_id = $1
		ORDER BY at ASC, id ASC`, bookingID)
	if err != nil {
		return nil, translate("list history", err)
	}
	defer rows.Close()

	var out []scheduling.HistoryEntry
	for rows.Next() {
		var h scheduling.HistoryEntry
		var prev, next string
		if err := rows.Scan(&h.ID, &h.BookingID, &prev, &next, &h.Reason, &h.ActorID, &h.At); err != nil {
			return nil, translate("scan history", err)
		}
		h.PreviousStatus = scheduling.BookingStatus(prev)
		h.NewStatus = scheduling.BookingStatus(next)
		out = append(out, h)
	}
	return out, translate("list history", rows.Err())
}

func scanRule(row pgx.Row) (*scheduling.AvailabilityRule, error) {
	var (
		r                scheduling.AvailabilityRule
		channel          string
		weekday          int
		startMin, endMin int
		ruleDate         *time.Time
	)
	if err := row.Scan(&r.ID, &r.ProviderID, &channel, &r.Recurring, &weekday, &ruleDate, &startMin, &endMin,
		&r.SlotMinutes, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Channel = scheduling.Channel(channel)
	r.Weekday = time.Weekday(weekday)
	r.StartTime = scheduling.TimeOfDay(startMin)
	r.EndTime = scheduling.TimeOfDay(endMin)
	r.Date = ruleDate
	return &r, nil
}

func scanLeave(row pgx.Row) (*scheduling.LeavePeriod, error) {
	var l scheduling.LeavePeriod
	if err := row.Scan(&l.ID, &l.ProviderID, &l.StartAt, &l.EndAt, &l.Reason, &l.CascadeCancel, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanBooking(row pgx.Row) (*scheduling.Booking, error) {
	var (
		b                        scheduling.Booking
		channel, status, urgency string
	)
	if err := row.Scan(&b.ID, &b.ProviderID, &b.SubjectID, &channel, &b.StartAt, &b.EndAt, &status, &urgency, &b.Notes,
		&b.RequestedFee, &b.CancellationFee, &b.RescheduleFee, &b.RescheduledFromID, &b.SupersededByID,
		&b.CreatedAt, &b.UpdatedAt, &b.RespondedAt, &b.CancelledAt); err != nil {
		return nil, err
	}
	b.Channel = scheduling.Channel(channel)
	b.Status = scheduling.BookingStatus(status)
	b.Urgency = scheduling.Urgency(urgency)
	return &b, nil
}
