package scheduling

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

var schedulingTracer = otel.Tracer("malaikasante.internal.scheduling")

// Service is the entry point for every scheduling operation.
type Service struct {
	store   Store
	cache   SlotCache
	metrics Metrics
	logger  *logging.Logger
	policy  Policy
	now     func() time.Time
}

// NewService constructs a scheduling service over store.
func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("scheduling: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		metrics: noopMetrics{},
		logger:  logger,
		policy:  DefaultPolicy(),
		now:     time.Now,
	}
}

func (s *Service) WithPolicy(p Policy) *Service {
	s.policy = p.Normalize()
	return s
}

func (s *Service) WithSlotCache(c SlotCache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithMetrics(m Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Policy returns the effective limits.
func (s *Service) Policy() Policy {
	return s.policy
}

// SlotRequest selects the windows to list.
type SlotRequest struct {
	ProviderID uuid.UUID
	Channel    Channel
	Urgency    Urgency
	RangeStart time.Time
	RangeEnd   time.Time
}

// ListAvailableSlots returns the free windows of a provider grouped by local
// date. Results may come from a short-lived cache; booking remains the
// authority on availability.
func (s *Service) ListAvailableSlots(ctx context.Context, req SlotRequest) ([]DaySlots, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.list_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", req.ProviderID.String()),
		attribute.String("channel", string(req.Channel)),
	)

	if !req.Channel.Valid() {
		return nil, s.fail(span, "list slots", Errorf(KindInvalidArgument, "unknown channel %q", req.Channel))
	}
	urgency, err := normalizeUrgency(req.Urgency)
	if err != nil {
		return nil, s.fail(span, "list slots", err)
	}
	if req.RangeEnd.Before(req.RangeStart) {
		return nil, s.fail(span, "list slots", Errorf(KindInvalidArgument, "range end is before range start"))
	}
	if req.RangeEnd.Sub(req.RangeStart) > s.policy.MaxSlotRange {
		return nil, s.fail(span, "list slots", Errorf(KindRangeTooLarge, "range exceeds %s", s.policy.MaxSlotRange))
	}

	load := func(ctx context.Context) ([]DaySlots, error) {
		provider, err := s.store.GetProvider(ctx, req.ProviderID)
		if err != nil {
			return nil, err
		}
		started := time.Now()
		seq, err := s.slots(ctx, s.store, provider, req.Channel, urgency, req.RangeStart, req.RangeEnd, s.now(), uuid.Nil)
		if err != nil {
			return nil, err
		}
		days := GroupByDate(seq, provider.Location())
		s.metrics.ObserveSlotGeneration(time.Since(started))
		return days, nil
	}

	var days []DaySlots
	if s.cache != nil {
		days, err = s.cache.Fetch(ctx, SlotKey{
			ProviderID: req.ProviderID,
			Channel:    req.Channel,
			Urgency:    urgency,
			RangeStart: req.RangeStart.UTC(),
			RangeEnd:   req.RangeEnd.UTC(),
		}, load)
	} else {
		days, err = load(ctx)
	}
	if err != nil {
		return nil, s.fail(span, "list slots", err)
	}
	return days, nil
}

// slots loads the generator inputs from r and returns the lazy window
// sequence. The booking identified by ignore is treated as free.
func (s *Service) slots(ctx context.Context, r Reader, p *Provider, ch Channel, u Urgency, start, end, now time.Time, ignore uuid.UUID) (iter.Seq[TimeWindow], error) {
	loc := p.Location()
	load := TimeWindow{Start: startOfDay(start, loc), End: nextDay(startOfDay(end, loc))}

	rules, err := r.ListRules(ctx, p.ID, ch, false)
	if err != nil {
		return nil, err
	}
	leaves, err := r.ListLeaves(ctx, p.ID, load)
	if err != nil {
		return nil, err
	}
	bookings, err := r.ListActiveBookings(ctx, p.ID, load)
	if err != nil {
		return nil, err
	}
	if ignore != uuid.Nil {
		kept := bookings[:0]
		for _, b := range bookings {
			if b.ID != ignore {
				kept = append(kept, b)
			}
		}
		bookings = kept
	}
	if !p.Active || !p.Offers(ch) {
		rules = nil
	}
	return GenerateSlots(SlotQuery{
		Location:   loc,
		Channel:    ch,
		Rules:      rules,
		Leaves:     leaves,
		Bookings:   bookings,
		RangeStart: start,
		RangeEnd:   end,
		Now:        now,
		LeadTime:   s.policy.LeadTime(u),
		MaxRange:   s.policy.MaxSlotRange,
	})
}

// locked runs fn under the provider lock and records how long the lock took.
func (s *Service) locked(ctx context.Context, providerID uuid.UUID, fn func(tx Tx) error) error {
	requested := time.Now()
	acquired := false
	err := s.store.WithProviderLock(ctx, providerID, s.policy.LockTimeout, func(tx Tx) error {
		acquired = true
		s.metrics.ObserveLockWait(time.Since(requested), nil)
		return fn(tx)
	})
	if !acquired && err != nil {
		s.metrics.ObserveLockWait(time.Since(requested), err)
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, providerID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, providerID)
	}
}

// fail records err on span and hides anything that is not a scheduling error.
func (s *Service) fail(span trace.Span, op string, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if KindOf(err) != KindInternal {
		return err
	}
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	s.logger.Error("scheduling operation failed", "op", op, "error", err)
	return Wrap(KindInternal, err, op+" failed")
}

func enqueue(ctx context.Context, tx Tx, aggregateID, recipient uuid.UUID, evt events.CanonicalEvent, now time.Time) error {
	env, err := events.NewEnvelope(aggregateID, recipient, evt, now)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, env)
}

func bookingEvent(kind string, b *Booking, actor Actor, prev BookingStatus, reason string, now time.Time) events.BookingEventV1 {
	return events.BookingEventV1{
		Kind:              kind,
		BookingID:         b.ID,
		ProviderID:        b.ProviderID,
		SubjectID:         b.SubjectID,
		ActorID:           actor.ID,
		Channel:           string(b.Channel),
		StartAt:           b.StartAt,
		EndAt:             b.EndAt,
		PreviousStatus:    string(prev),
		Status:            string(b.Status),
		Reason:            reason,
		RequestedFeeCents: b.RequestedFee,
		CancellationFee:   b.CancellationFee,
		RescheduleFee:     b.RescheduleFee,
		RescheduledFromID: b.RescheduledFromID,
		OccurredAt:        now,
	}
}

func normalizeUrgency(u Urgency) (Urgency, error) {
	switch u {
	case "":
		return UrgencyRoutine, nil
	case UrgencyRoutine, UrgencyUrgent:
		return u, nil
	}
	return "", Errorf(KindInvalidArgument, "unknown urgency %q", u)
}
