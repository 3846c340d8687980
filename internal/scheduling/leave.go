package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
)

// LeaveRequest declares a period of provider unavailability.
type LeaveRequest struct {
	StartAt       time.Time
	EndAt         time.Time
	Reason        string
	CascadeCancel bool
}

// LeaveResult reports what a leave operation cancelled. Remaining counts
// overlapping bookings left active because the batch cap was reached; they
// need a follow-up sweep.
type LeaveResult struct {
	Leave     *LeavePeriod `json:"leave"`
	Cancelled []Booking    `json:"cancelled"`
	Remaining int          `json:"remaining"`
}

// AddLeave records a leave period for the provider. With CascadeCancel the
// overlapping bookings are cancelled free of charge in the same unit of work,
// up to the configured cap.
func (s *Service) AddLeave(ctx context.Context, actor Actor, providerID uuid.UUID, req LeaveRequest) (*LeaveResult, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.add_leave")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", providerID.String()),
		attribute.Bool("cascade_cancel", req.CascadeCancel),
	)

	if actor.Role != RoleProvider || actor.ID != providerID {
		return nil, s.fail(span, "add leave", Errorf(KindUnauthorized, "only the provider may declare leave"))
	}
	if !req.StartAt.Before(req.EndAt) {
		return nil, s.fail(span, "add leave", Errorf(KindInvalidArgument, "leave must end after it starts"))
	}
	now := s.now()
	if !req.StartAt.After(now) {
		return nil, s.fail(span, "add leave", Errorf(KindLeaveInPast, "leave must start in the future"))
	}
	if req.EndAt.Sub(req.StartAt) > s.policy.MaxLeaveDuration {
		return nil, s.fail(span, "add leave", Errorf(KindLeaveTooLong, "leave exceeds %s", s.policy.MaxLeaveDuration))
	}
	if _, err := s.store.GetProvider(ctx, providerID); err != nil {
		return nil, s.fail(span, "add leave", err)
	}

	leave := &LeavePeriod{
		ID:            uuid.New(),
		ProviderID:    providerID,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Reason:        req.Reason,
		CascadeCancel: req.CascadeCancel,
		CreatedAt:     now,
	}
	result := &LeaveResult{Leave: leave}
	var prior []BookingStatus
	err := s.locked(ctx, providerID, func(tx Tx) error {
		existing, err := tx.ListLeaves(ctx, providerID, leave.Window())
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return Errorf(KindLeaveConflict, "leave overlaps an existing leave period")
		}
		if err := tx.InsertLeave(ctx, leave); err != nil {
			return err
		}
		if !leave.CascadeCancel {
			return nil
		}
		result.Cancelled, prior, result.Remaining, err = s.cascade(ctx, tx, leave, actor, now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "add leave", err)
	}
	s.afterCascade(ctx, result, prior)
	s.logger.Info("leave added", "leave_id", leave.ID, "provider_id", providerID,
		"cancelled", len(result.Cancelled), "remaining", result.Remaining)
	return result, nil
}

// SweepLeave cancels the next batch of bookings still overlapping a
// cascading leave. Operators use it to finish cascades that hit the cap.
func (s *Service) SweepLeave(ctx context.Context, actor Actor, leaveID uuid.UUID) (*LeaveResult, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.sweep_leave")
	defer span.End()
	span.SetAttributes(attribute.String("leave_id", leaveID.String()))

	leave, err := s.store.GetLeave(ctx, leaveID)
	if err != nil {
		return nil, s.fail(span, "sweep leave", err)
	}
	owner := actor.Role == RoleProvider && actor.ID == leave.ProviderID
	if !owner && actor.Role != RoleOperator {
		return nil, s.fail(span, "sweep leave", Errorf(KindUnauthorized, "actor may not sweep this leave"))
	}
	if !leave.CascadeCancel {
		return nil, s.fail(span, "sweep leave", Errorf(KindInvalidState, "leave does not cascade cancellations"))
	}

	now := s.now()
	result := &LeaveResult{Leave: leave}
	var prior []BookingStatus
	err = s.locked(ctx, leave.ProviderID, func(tx Tx) error {
		current, err := tx.GetLeave(ctx, leaveID)
		if err != nil {
			return err
		}
		result.Leave = current
		result.Cancelled, prior, result.Remaining, err = s.cascade(ctx, tx, current, actor, now)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "sweep leave", err)
	}
	s.afterCascade(ctx, result, prior)
	s.logger.Info("leave swept", "leave_id", leaveID, "cancelled", len(result.Cancelled), "remaining", result.Remaining)
	return result, nil
}

// cascade cancels up to LeaveCascadeCap future bookings overlapping leave and
// sends one notification per affected subject. It returns the cancelled
// bookings with their statuses before cancellation, and how many are left.
func (s *Service) cascade(ctx context.Context, tx Tx, leave *LeavePeriod, actor Actor, now time.Time) ([]Booking, []BookingStatus, int, error) {
	overlapping, err := tx.ListActiveBookings(ctx, leave.ProviderID, leave.Window())
	if err != nil {
		return nil, nil, 0, err
	}
	pending := overlapping[:0]
	for _, b := range overlapping {
		if b.StartAt.After(now) {
			pending = append(pending, b)
		}
	}
	batch := pending
	if len(batch) > s.policy.LeaveCascadeCap {
		batch = batch[:s.policy.LeaveCascadeCap]
	}

	reason := "provider leave"
	if leave.Reason != "" {
		reason += ": " + leave.Reason
	}
	cancelled := make([]Booking, 0, len(batch))
	prior := make([]BookingStatus, 0, len(batch))
	bySubject := make(map[uuid.UUID][]uuid.UUID)
	var subjects []uuid.UUID
	for i := range batch {
		b := batch[i]
		prior = append(prior, b.Status)
		b.CancellationFee = 0
		entry, err := apply(&b, TransitionCancel, actor, reason, now)
		if err != nil {
			return nil, nil, 0, err
		}
		if err := tx.UpdateBooking(ctx, &b); err != nil {
			return nil, nil, 0, err
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return nil, nil, 0, err
		}
		if _, seen := bySubject[b.SubjectID]; !seen {
			subjects = append(subjects, b.SubjectID)
		}
		bySubject[b.SubjectID] = append(bySubject[b.SubjectID], b.ID)
		cancelled = append(cancelled, b)
	}

	for _, subject := range subjects {
		evt := events.LeaveCascadeV1{
			LeaveID:    leave.ID,
			ProviderID: leave.ProviderID,
			SubjectID:  subject,
			BookingIDs: bySubject[subject],
			LeaveStart: leave.StartAt,
			LeaveEnd:   leave.EndAt,
			Reason:     leave.Reason,
			OccurredAt: now,
		}
		if err := enqueue(ctx, tx, leave.ID, subject, evt, now); err != nil {
			return nil, nil, 0, err
		}
	}
	return cancelled, prior, len(pending) - len(batch), nil
}

// afterCascade records a committed cascade. prior holds the status of each
// cancelled booking before the leave.
func (s *Service) afterCascade(ctx context.Context, result *LeaveResult, prior []BookingStatus) {
	for i, b := range result.Cancelled {
		s.metrics.ObserveTransition(prior[i], b.Status)
	}
	s.metrics.ObserveCascade(len(result.Cancelled), result.Remaining)
	s.invalidate(ctx, result.Leave.ProviderID)
	if result.Remaining > 0 {
		s.logger.Warn("leave cascade reached its cap; sweep required",
			"leave_id", result.Leave.ID, "remaining", result.Remaining)
	}
}

// RemoveLeave deletes a leave that has not started yet. Bookings cancelled by
// its cascade stay cancelled.
func (s *Service) RemoveLeave(ctx context.Context, actor Actor, leaveID uuid.UUID) error {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.remove_leave")
	defer span.End()
	span.SetAttributes(attribute.String("leave_id", leaveID.String()))

	leave, err := s.store.GetLeave(ctx, leaveID)
	if err != nil {
		return s.fail(span, "remove leave", err)
	}
	if actor.Role != RoleProvider || actor.ID != leave.ProviderID {
		return s.fail(span, "remove leave", Errorf(KindUnauthorized, "only the provider may remove leave"))
	}
	now := s.now()
	err = s.locked(ctx, leave.ProviderID, func(tx Tx) error {
		current, err := tx.GetLeave(ctx, leaveID)
		if err != nil {
			return err
		}
		if !now.Before(current.StartAt) {
			return Errorf(KindLeaveAlreadyStarted, "leave started at %s", current.StartAt.Format(time.RFC3339))
		}
		return tx.DeleteLeave(ctx, leaveID)
	})
	if err != nil {
		return s.fail(span, "remove leave", err)
	}
	s.invalidate(ctx, leave.ProviderID)
	s.logger.Info("leave removed", "leave_id", leaveID, "provider_id", leave.ProviderID)
	return nil
}

// ListLeaves returns the provider's leaves overlapping window.
func (s *Service) ListLeaves(ctx context.Context, providerID uuid.UUID, window TimeWindow) ([]LeavePeriod, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.list_leaves")
	defer span.End()

	leaves, err := s.store.ListLeaves(ctx, providerID, window)
	if err != nil {
		return nil, s.fail(span, "list leaves", err)
	}
	return leaves, nil
}
