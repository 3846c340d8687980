package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
)

const (
	maxAlternatives   = 3
	alternativeWindow = 7 * 24 * time.Hour
)

// BookingRequest is a subject's request for one provider window.
type BookingRequest struct {
	ProviderID uuid.UUID
	Channel    Channel
	StartAt    time.Time
	EndAt      time.Time
	Urgency    Urgency
	Notes      string
}

// Decision is the provider's answer to a requested booking.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// RescheduleRequest moves a confirmed booking to a new window.
type RescheduleRequest struct {
	StartAt time.Time
	EndAt   time.Time
	Reason  string
	// MutualConsent confirms the new booking immediately instead of
	// sending it back to the provider.
	MutualConsent bool
}

// RequestBooking validates the request and reserves the window. The overlap
// check and the insert run under the provider lock, so at most one of several
// concurrent overlapping requests succeeds.
func (s *Service) RequestBooking(ctx context.Context, actor Actor, req BookingRequest) (booking *Booking, err error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.request_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", req.ProviderID.String()),
		attribute.String("subject_id", actor.ID.String()),
	)
	defer func() { s.metrics.ObserveBookingAttempt(KindOf(err)) }()

	if actor.Role != RoleSubject {
		return nil, s.fail(span, "request booking", Errorf(KindUnauthorized, "only subjects may request bookings"))
	}
	urgency, err := normalizeUrgency(req.Urgency)
	if err != nil {
		return nil, s.fail(span, "request booking", err)
	}
	now := s.now()
	window := TimeWindow{Start: req.StartAt, End: req.EndAt}
	provider, err := s.validateWindow(ctx, req.ProviderID, req.Channel, urgency, window, now)
	if err != nil {
		return nil, s.fail(span, "request booking", err)
	}

	b := &Booking{
		ID:           uuid.New(),
		ProviderID:   provider.ID,
		SubjectID:    actor.ID,
		Channel:      req.Channel,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Status:       StatusRequested,
		Urgency:      urgency,
		Notes:        req.Notes,
		RequestedFee: provider.Fees[req.Channel],
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.locked(ctx, provider.ID, func(tx Tx) error {
		if err := checkWindowFree(ctx, tx, provider.ID, window, uuid.Nil); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, created(b, actor, "")); err != nil {
			return err
		}
		evt := bookingEvent(events.TypeBookingRequested, b, actor, "", "", now)
		return enqueue(ctx, tx, b.ID, b.ProviderID, evt, now)
	})
	if err != nil {
		return nil, s.fail(span, "request booking", err)
	}
	s.metrics.ObserveTransition("", b.Status)
	s.invalidate(ctx, provider.ID)
	s.logger.Info("booking requested", "booking_id", b.ID, "provider_id", b.ProviderID, "start_at", b.StartAt)
	return b, nil
}

// validateWindow runs the pre-lock checks in order, stopping at the first
// failure: lead time, duration, provider and channel, leave, availability.
func (s *Service) validateWindow(ctx context.Context, providerID uuid.UUID, ch Channel, u Urgency, w TimeWindow, now time.Time) (*Provider, error) {
	lead := s.policy.LeadTime(u)
	if !w.Start.After(now) || w.Start.Sub(now) < lead {
		return nil, Errorf(KindLeadTimeViolation, "start must be at least %s from now", lead)
	}
	d := w.Duration()
	if d <= 0 || d%time.Minute != 0 || d < s.policy.MinBookingDuration || d > s.policy.MaxBookingDuration {
		return nil, Errorf(KindInvalidDuration, "duration must be whole minutes between %s and %s",
			s.policy.MinBookingDuration, s.policy.MaxBookingDuration)
	}

	provider, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, Errorf(KindProviderUnavailable, "provider %s not found", providerID)
		}
		return nil, err
	}
	if !provider.Active || !provider.Offers(ch) {
		return nil, Errorf(KindProviderUnavailable, "provider does not offer %s consultations", ch)
	}

	leaves, err := s.store.ListLeaves(ctx, providerID, w)
	if err != nil {
		return nil, err
	}
	if len(leaves) > 0 {
		return nil, Errorf(KindProviderOnLeave, "provider is on leave during the requested window")
	}

	rules, err := s.store.ListRules(ctx, providerID, ch, false)
	if err != nil {
		return nil, err
	}
	if !covered(RuleWindows(w.Start.In(provider.Location()), provider.Location(), rules), w) {
		return nil, Errorf(KindOutsideAvailability, "requested window is outside the provider's availability")
	}
	return provider, nil
}

// checkWindowFree is the authoritative re-check performed under the lock.
func checkWindowFree(ctx context.Context, tx Tx, providerID uuid.UUID, w TimeWindow, ignore uuid.UUID) error {
	leaves, err := tx.ListLeaves(ctx, providerID, w)
	if err != nil {
		return err
	}
	if len(leaves) > 0 {
		return Errorf(KindProviderOnLeave, "provider is on leave during the requested window")
	}
	existing, err := tx.ListActiveBookings(ctx, providerID, w)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b.ID != ignore && b.Window().Overlaps(w) {
			return Errorf(KindSlotConflict, "window is no longer available")
		}
	}
	return nil
}

// covered reports whether w lies inside one contiguous run of windows and
// starts and ends on window boundaries of that run. windows must be sorted
// by start.
func covered(windows []TimeWindow, w TimeWindow) bool {
	var run TimeWindow
	var startOK, endOK bool
	for i, cur := range windows {
		if i == 0 || cur.Start.After(run.End) {
			if i > 0 && startOK && endOK && run.Contains(w) {
				return true
			}
			run, startOK, endOK = cur, false, false
		} else if cur.End.After(run.End) {
			run.End = cur.End
		}
		startOK = startOK || cur.Start.Equal(w.Start)
		endOK = endOK || cur.End.Equal(w.End)
	}
	return len(windows) > 0 && startOK && endOK && run.Contains(w)
}

// Respond applies the provider's decision to a requested booking. Rejections
// carry up to three alternative windows in the following week.
func (s *Service) Respond(ctx context.Context, actor Actor, bookingID uuid.UUID, decision Decision, reason string) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.respond")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", bookingID.String()), attribute.String("decision", string(decision)))

	var t Transition
	switch decision {
	case DecisionAccept:
		t = TransitionAccept
	case DecisionReject:
		t = TransitionReject
		if reason == "" {
			return nil, s.fail(span, "respond", Errorf(KindInvalidArgument, "a reason is required to reject"))
		}
	default:
		return nil, s.fail(span, "respond", Errorf(KindInvalidArgument, "unknown decision %q", decision))
	}
	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "respond", err)
	}
	if actor.Role != RoleProvider || actor.ID != current.ProviderID {
		return nil, s.fail(span, "respond", Errorf(KindUnauthorized, "only the booked provider may respond"))
	}

	now := s.now()
	var (
		b    *Booking
		prev BookingStatus
	)
	err = s.locked(ctx, current.ProviderID, func(tx Tx) error {
		b, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		prev = b.Status
		if _, err := NextStatus(b.Status, t); err != nil {
			return err
		}
		if t == TransitionAccept && !b.StartAt.After(now) {
			return Errorf(KindAlreadyElapsed, "booking start has passed")
		}
		var alternatives []events.WindowV1
		if t == TransitionReject {
			alternatives, err = s.alternatives(ctx, tx, b, now)
			if err != nil {
				return err
			}
		}
		entry, err := apply(b, t, actor, reason, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		kind := events.TypeBookingConfirmed
		if t == TransitionReject {
			kind = events.TypeBookingRejected
		}
		evt := bookingEvent(kind, b, actor, prev, reason, now)
		evt.Alternatives = alternatives
		return enqueue(ctx, tx, b.ID, b.SubjectID, evt, now)
	})
	if err != nil {
		return nil, s.fail(span, "respond", err)
	}
	s.metrics.ObserveTransition(prev, b.Status)
	s.invalidate(ctx, b.ProviderID)
	s.logger.Info("booking responded", "booking_id", b.ID, "status", b.Status)
	return b, nil
}

func (s *Service) alternatives(ctx context.Context, tx Tx, b *Booking, now time.Time) ([]events.WindowV1, error) {
	provider, err := tx.GetProvider(ctx, b.ProviderID)
	if err != nil {
		return nil, err
	}
	rangeEnd := now.Add(alternativeWindow)
	seq, err := s.slots(ctx, tx, provider, b.Channel, b.Urgency, now, rangeEnd, now, b.ID)
	if err != nil {
		return nil, err
	}
	out := make([]events.WindowV1, 0, maxAlternatives)
	for w := range seq {
		if w.Start.Equal(b.StartAt) && w.End.Equal(b.EndAt) {
			continue
		}
		out = append(out, events.WindowV1{Start: w.Start, End: w.End})
		if len(out) == maxAlternatives {
			break
		}
	}
	return out, nil
}

// Cancel cancels a requested or confirmed booking on behalf of either party
// and charges the tiered cancellation fee.
func (s *Service) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", bookingID.String()))

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "cancel", err)
	}
	if !current.IsParty(actor) {
		return nil, s.fail(span, "cancel", Errorf(KindUnauthorized, "actor is not a party to the booking"))
	}

	now := s.now()
	var (
		b    *Booking
		prev BookingStatus
	)
	err = s.locked(ctx, current.ProviderID, func(tx Tx) error {
		b, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		prev = b.Status
		if _, err := NextStatus(b.Status, TransitionCancel); err != nil {
			return err
		}
		if !b.StartAt.After(now) {
			return Errorf(KindAlreadyElapsed, "booking start has passed")
		}
		b.CancellationFee = CancellationFee(b.RequestedFee, b.StartAt, now, actor.Role)
		entry, err := apply(b, TransitionCancel, actor, reason, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		evt := bookingEvent(events.TypeBookingCancelled, b, actor, prev, reason, now)
		return enqueue(ctx, tx, b.ID, b.Counterpart(actor), evt, now)
	})
	if err != nil {
		return nil, s.fail(span, "cancel", err)
	}
	s.metrics.ObserveTransition(prev, b.Status)
	s.invalidate(ctx, b.ProviderID)
	s.logger.Info("booking cancelled", "booking_id", b.ID, "fee_cents", b.CancellationFee, "by", actor.Role)
	return b, nil
}

// Reschedule moves a confirmed booking. The old booking is cancelled without
// a cancellation fee and linked to the new one, which carries the reschedule
// fee. The new window goes through the same validation as a fresh request.
func (s *Service) Reschedule(ctx context.Context, actor Actor, bookingID uuid.UUID, req RescheduleRequest) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", bookingID.String()))

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "reschedule", err)
	}
	if !current.IsParty(actor) {
		return nil, s.fail(span, "reschedule", Errorf(KindUnauthorized, "actor is not a party to the booking"))
	}
	now := s.now()
	if err := reschedulable(current, now); err != nil {
		return nil, s.fail(span, "reschedule", err)
	}
	window := TimeWindow{Start: req.StartAt, End: req.EndAt}
	if _, err := s.validateWindow(ctx, current.ProviderID, current.Channel, current.Urgency, window, now); err != nil {
		return nil, s.fail(span, "reschedule", err)
	}

	var old, next *Booking
	err = s.locked(ctx, current.ProviderID, func(tx Tx) error {
		old, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := reschedulable(old, now); err != nil {
			return err
		}
		if err := checkWindowFree(ctx, tx, old.ProviderID, window, old.ID); err != nil {
			return err
		}

		status := StatusRequested
		if req.MutualConsent {
			status = StatusConfirmed
		}
		next = &Booking{
			ID:                uuid.New(),
			ProviderID:        old.ProviderID,
			SubjectID:         old.SubjectID,
			Channel:           old.Channel,
			StartAt:           req.StartAt,
			EndAt:             req.EndAt,
			Status:            status,
			Urgency:           old.Urgency,
			Notes:             old.Notes,
			RequestedFee:      old.RequestedFee,
			RescheduleFee:     RescheduleFee(old.RequestedFee, old.StartAt, now, actor.Role),
			RescheduledFromID: &old.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if status == StatusConfirmed {
			next.RespondedAt = &now
		}

		entry, err := apply(old, TransitionReschedule, actor, req.Reason, now)
		if err != nil {
			return err
		}
		old.SupersededByID = &next.ID
		// The old row must leave the active set before the new one is inserted.
		if err := tx.UpdateBooking(ctx, old); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, next); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, created(next, actor, req.Reason)); err != nil {
			return err
		}
		evt := bookingEvent(events.TypeBookingRescheduled, next, actor, StatusConfirmed, req.Reason, now)
		return enqueue(ctx, tx, next.ID, next.Counterpart(actor), evt, now)
	})
	if err != nil {
		return nil, s.fail(span, "reschedule", err)
	}
	s.metrics.ObserveTransition(StatusConfirmed, StatusCancelled)
	s.metrics.ObserveTransition("", next.Status)
	s.invalidate(ctx, next.ProviderID)
	s.logger.Info("booking rescheduled", "booking_id", old.ID, "new_booking_id", next.ID, "fee_cents", next.RescheduleFee)
	return next, nil
}

func reschedulable(b *Booking, now time.Time) error {
	if _, err := NextStatus(b.Status, TransitionReschedule); err != nil {
		return err
	}
	if !b.StartAt.After(now) {
		return Errorf(KindAlreadyElapsed, "booking start has passed")
	}
	return nil
}

// Complete records that a confirmed appointment took place. It is driven by
// the consultation workflow once the start time has passed.
func (s *Service) Complete(ctx context.Context, actor Actor, bookingID uuid.UUID) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.complete")
	defer span.End()

	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "complete", err)
	}
	if actor.Role != RoleProvider || actor.ID != current.ProviderID {
		return nil, s.fail(span, "complete", Errorf(KindUnauthorized, "only the booked provider may complete"))
	}
	now := s.now()
	var b *Booking
	err = s.locked(ctx, current.ProviderID, func(tx Tx) error {
		b, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := NextStatus(b.Status, TransitionComplete); err != nil {
			return err
		}
		if now.Before(b.StartAt) {
			return Errorf(KindInvalidState, "appointment has not started")
		}
		entry, err := apply(b, TransitionComplete, actor, "", now)
		if err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, s.fail(span, "complete", err)
	}
	s.metrics.ObserveTransition(StatusConfirmed, StatusCompleted)
	return b, nil
}

// GetBooking returns a booking to one of its parties.
func (s *Service) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.get_booking")
	defer span.End()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "get booking", err)
	}
	if !b.IsParty(actor) {
		return nil, s.fail(span, "get booking", Errorf(KindUnauthorized, "actor is not a party to the booking"))
	}
	return b, nil
}

// BookingHistory returns the audit trail of a booking, oldest first.
func (s *Service) BookingHistory(ctx context.Context, actor Actor, bookingID uuid.UUID) ([]HistoryEntry, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.booking_history")
	defer span.End()

	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListHistory(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "booking history", err)
	}
	return entries, nil
}
