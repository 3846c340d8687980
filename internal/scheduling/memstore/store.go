// Package memstore is an in-process scheduling store. It backs tests and
// local development when no database is configured. Writes are staged per
// transaction, so reads outside the provider lock only see committed rows.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

// Store keeps every record in maps. Writers for one provider are serialized
// by a per-provider semaphore; the maps themselves are guarded by mu. Inserts
// enforce the same non-overlap rules as the database constraints.
type Store struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]scheduling.Provider
	rules     map[uuid.UUID]scheduling.AvailabilityRule
	leaves    map[uuid.UUID]scheduling.LeavePeriod
	bookings  map[uuid.UUID]scheduling.Booking
	history   map[uuid.UUID][]scheduling.HistoryEntry
	outbox    []outboxEntry

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}
}

type outboxEntry struct {
	env       events.Envelope
	delivered bool
}

var (
	_ scheduling.Store = (*Store)(nil)
	_ events.Source    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		providers: make(map[uuid.UUID]scheduling.Provider),
		rules:     make(map[uuid.UUID]scheduling.AvailabilityRule),
		leaves:    make(map[uuid.UUID]scheduling.LeavePeriod),
		bookings:  make(map[uuid.UUID]scheduling.Booking),
		history:   make(map[uuid.UUID][]scheduling.HistoryEntry),
		locks:     make(map[uuid.UUID]chan struct{}),
	}
}

// PutProvider registers or replaces a provider. Providers are owned by the
// account system, so there is no service operation for this.
func (s *Store) PutProvider(p scheduling.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Fees = cloneFees(p.Fees)
	s.providers[p.ID] = p
}

// UpsertProvider is PutProvider with the signature shared by the postgres store.
func (s *Store) UpsertProvider(_ context.Context, p scheduling.Provider) error {
	s.PutProvider(p)
	return nil
}

func (s *Store) GetProvider(_ context.Context, id uuid.UUID) (*scheduling.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, scheduling.Errorf(scheduling.KindNotFound, "provider %s not found", id)
	}
	p.Fees = cloneFees(p.Fees)
	return &p, nil
}

func (s *Store) ListRules(_ context.Context, providerID uuid.UUID, channel scheduling.Channel, includeInactive bool) ([]scheduling.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scheduling.AvailabilityRule
	for _, r := range s.rules {
		if r.ProviderID != providerID || (channel != "" && r.Channel != channel) || (!includeInactive && !r.Active) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b scheduling.AvailabilityRule) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetRule(_ context.Context, id uuid.UUID) (*scheduling.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, scheduling.Errorf(scheduling.KindNotFound, "rule %s not found", id)
	}
	return &r, nil
}

func (s *Store) ListLeaves(_ context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.LeavePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scheduling.LeavePeriod
	for _, l := range s.leaves {
		if l.ProviderID == providerID && l.Window().Overlaps(window) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b scheduling.LeavePeriod) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return out, nil
}

func (s *Store) GetLeave(_ context.Context, id uuid.UUID) (*scheduling.LeavePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leaves[id]
	if !ok {
		return nil, scheduling.Errorf(scheduling.KindNotFound, "leave %s not found", id)
	}
	return &l, nil
}

func (s *Store) ListActiveBookings(_ context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(providerID, window), nil
}

func (s *Store) activeLocked(providerID uuid.UUID, window scheduling.TimeWindow) []scheduling.Booking {
	var out []scheduling.Booking
	for _, b := range s.bookings {
		if b.ProviderID == providerID && b.Status.Active() && b.Window().Overlaps(window) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b scheduling.Booking) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return out
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (*scheduling.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, scheduling.Errorf(scheduling.KindNotFound, "booking %s not found", id)
	}
	return &b, nil
}

func (s *Store) ListHistory(_ context.Context, bookingID uuid.UUID) ([]scheduling.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[bookingID]), nil
}

// WithProviderLock runs fn while holding the provider's semaphore. Writes
// made through tx are applied together only when fn returns nil.
func (s *Store) WithProviderLock(ctx context.Context, providerID uuid.UUID, timeout time.Duration, fn func(tx scheduling.Tx) error) error {
	sem := s.semaphore(providerID)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return scheduling.Errorf(scheduling.KindTemporarilyUnavailable, "provider lock not acquired within %s", timeout)
	case <-ctx.Done():
		return scheduling.Wrap(scheduling.KindTemporarilyUnavailable, ctx.Err(), "provider lock wait aborted")
	}
	defer func() { <-sem }()

	t := newTx(s)
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) semaphore(providerID uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	sem, ok := s.locks[providerID]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[providerID] = sem
	}
	return sem
}

// FetchPending implements events.Source.
func (s *Store) FetchPending(_ context.Context, limit int32) ([]events.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Envelope
	for _, e := range s.outbox {
		if int32(len(out)) >= limit {
			break
		}
		if !e.delivered {
			out = append(out, e.env)
		}
	}
	return out, nil
}

// MarkDelivered implements events.Source.
func (s *Store) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].env.ID == id && !s.outbox[i].delivered {
			s.outbox[i].delivered = true
			return true, nil
		}
	}
	return false, nil
}

func cloneFees(in map[scheduling.Channel]int64) map[scheduling.Channel]int64 {
	if in == nil {
		return nil
	}
	out := make(map[scheduling.Channel]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
