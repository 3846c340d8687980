package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// tx stages its writes and reads through them. Nothing reaches the store
// until commit, so readers outside the lock never see a write that is later
// discarded. The caller holds the provider semaphore for the whole lifetime
// of the tx, so committed rows of that provider cannot change underneath it.
type tx struct {
	s *Store

	bookings      map[uuid.UUID]scheduling.Booking
	leaves        map[uuid.UUID]scheduling.LeavePeriod
	deletedLeaves map[uuid.UUID]struct{}
	rules         map[uuid.UUID]scheduling.AvailabilityRule
	history       []scheduling.HistoryEntry
	outbox        []outboxEntry
}

var _ scheduling.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:             s,
		bookings:      make(map[uuid.UUID]scheduling.Booking),
		leaves:        make(map[uuid.UUID]scheduling.LeavePeriod),
		deletedLeaves: make(map[uuid.UUID]struct{}),
		rules:         make(map[uuid.UUID]scheduling.AvailabilityRule),
	}
}

// commit applies every staged write at once.
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range t.bookings {
		s.bookings[id] = b
	}
	for id := range t.deletedLeaves {
		delete(s.leaves, id)
	}
	for id, l := range t.leaves {
		s.leaves[id] = l
	}
	for id, r := range t.rules {
		s.rules[id] = r
	}
	for _, h := range t.history {
		s.history[h.BookingID] = append(s.history[h.BookingID], h)
	}
	s.outbox = append(s.outbox, t.outbox...)
}

func (t *tx) GetProvider(ctx context.Context, id uuid.UUID) (*scheduling.Provider, error) {
	return t.s.GetProvider(ctx, id)
}

func (t *tx) ListRules(ctx context.Context, providerID uuid.UUID, channel scheduling.Channel, includeInactive bool) ([]scheduling.AvailabilityRule, error) {
	committed, err := t.s.ListRules(ctx, providerID, "", true)
	if err != nil {
		return nil, err
	}
	var out []scheduling.AvailabilityRule
	keep := func(r scheduling.AvailabilityRule) {
		if r.ProviderID == providerID && (channel == "" || r.Channel == channel) && (includeInactive || r.Active) {
			out = append(out, r)
		}
	}
	for _, r := range committed {
		if _, staged := t.rules[r.ID]; !staged {
			keep(r)
		}
	}
	for _, r := range t.rules {
		keep(r)
	}
	slices.SortFunc(out, func(a, b scheduling.AvailabilityRule) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (t *tx) GetRule(ctx context.Context, id uuid.UUID) (*scheduling.AvailabilityRule, error) {
	if r, ok := t.rules[id]; ok {
		return &r, nil
	}
	return t.s.GetRule(ctx, id)
}

func (t *tx) ListLeaves(ctx context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.LeavePeriod, error) {
	committed, err := t.s.ListLeaves(ctx, providerID, window)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(committed, func(l scheduling.LeavePeriod) bool {
		_, deleted := t.deletedLeaves[l.ID]
		_, staged := t.leaves[l.ID]
		return deleted || staged
	})
	for _, l := range t.leaves {
		if l.ProviderID == providerID && l.Window().Overlaps(window) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b scheduling.LeavePeriod) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return out, nil
}

func (t *tx) GetLeave(ctx context.Context, id uuid.UUID) (*scheduling.LeavePeriod, error) {
	if l, ok := t.leaves[id]; ok {
		return &l, nil
	}
	if _, deleted := t.deletedLeaves[id]; deleted {
		return nil, scheduling.Errorf(scheduling.KindNotFound, "leave %s not found", id)
	}
	return t.s.GetLeave(ctx, id)
}

func (t *tx) ListActiveBookings(ctx context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.Booking, error) {
	committed, err := t.s.ListActiveBookings(ctx, providerID, window)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(committed, func(b scheduling.Booking) bool {
		_, staged := t.bookings[b.ID]
		return staged
	})
	for _, b := range t.bookings {
		if b.ProviderID == providerID && b.Status.Active() && b.Window().Overlaps(window) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b scheduling.Booking) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return out, nil
}

func (t *tx) GetBooking(ctx context.Context, id uuid.UUID) (*scheduling.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return &b, nil
	}
	return t.s.GetBooking(ctx, id)
}

func (t *tx) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]scheduling.HistoryEntry, error) {
	out, err := t.s.ListHistory(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for _, h := range t.history {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *tx) InsertBooking(ctx context.Context, b *scheduling.Booking) error {
	if _, err := t.GetBooking(ctx, b.ID); err == nil {
		return scheduling.Errorf(scheduling.KindInvalidArgument, "booking %s already exists", b.ID)
	}
	if b.Status.Active() {
		active, err := t.ListActiveBookings(ctx, b.ProviderID, b.Window())
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return scheduling.Errorf(scheduling.KindSlotConflict, "window is no longer available")
		}
	}
	t.bookings[b.ID] = *b
	return nil
}

func (t *tx) UpdateBooking(ctx context.Context, b *scheduling.Booking) error {
	if _, err := t.GetBooking(ctx, b.ID); err != nil {
		return err
	}
	if b.Status.Active() {
		active, err := t.ListActiveBookings(ctx, b.ProviderID, b.Window())
		if err != nil {
			return err
		}
		for _, other := range active {
			if other.ID != b.ID {
				return scheduling.Errorf(scheduling.KindSlotConflict, "window is no longer available")
			}
		}
	}
	t.bookings[b.ID] = *b
	return nil
}

func (t *tx) AppendHistory(_ context.Context, h scheduling.HistoryEntry) error {
	t.history = append(t.history, h)
	return nil
}

func (t *tx) InsertLeave(ctx context.Context, l *scheduling.LeavePeriod) error {
	overlapping, err := t.ListLeaves(ctx, l.ProviderID, l.Window())
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return scheduling.Errorf(scheduling.KindLeaveConflict, "leave overlaps an existing leave period")
	}
	delete(t.deletedLeaves, l.ID)
	t.leaves[l.ID] = *l
	return nil
}

func (t *tx) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	if _, err := t.GetLeave(ctx, id); err != nil {
		return err
	}
	delete(t.leaves, id)
	t.deletedLeaves[id] = struct{}{}
	return nil
}

func (t *tx) SaveRule(_ context.Context, r *scheduling.AvailabilityRule) error {
	t.rules[r.ID] = *r
	return nil
}

func (t *tx) Enqueue(_ context.Context, env events.Envelope) error {
	t.outbox = append(t.outbox, outboxEntry{env: env})
	return nil
}
