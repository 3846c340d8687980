package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

func booking(providerID uuid.UUID, start time.Time) *scheduling.Booking {
	return &scheduling.Booking{
		ID:         uuid.New(),
		ProviderID: providerID,
		SubjectID:  uuid.New(),
		StartAt:    start,
		EndAt:      start.Add(30 * time.Minute),
		Status:     scheduling.StatusRequested,
	}
}

func TestRollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := booking(providerID, start)
	env, err := events.NewEnvelope(b.ID, providerID, events.BookingEventV1{}, start)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		require.NoError(t, tx.InsertBooking(ctx, b))
		require.NoError(t, tx.AppendHistory(ctx, scheduling.HistoryEntry{BookingID: b.ID, NewStatus: b.Status}))
		require.NoError(t, tx.Enqueue(ctx, env))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	history, err := s.ListHistory(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	pending, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInsertEnforcesNonOverlap(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	err := s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		if err := tx.InsertBooking(ctx, booking(providerID, start)); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, booking(providerID, start.Add(30*time.Minute))); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, booking(providerID, start.Add(15*time.Minute)))
	})
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)

	active, err := s.ListActiveBookings(ctx, providerID, scheduling.TimeWindow{Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, active)

	// Another provider's calendar is independent.
	err = s.WithProviderLock(ctx, uuid.New(), time.Second, func(tx scheduling.Tx) error {
		return tx.InsertBooking(ctx, booking(uuid.New(), start))
	})
	assert.NoError(t, err)
}

func TestLeaveOverlapIsRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	err := s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		if err := tx.InsertLeave(ctx, &scheduling.LeavePeriod{ID: uuid.New(), ProviderID: providerID, StartAt: start, EndAt: start.Add(48 * time.Hour)}); err != nil {
			return err
		}
		return tx.InsertLeave(ctx, &scheduling.LeavePeriod{ID: uuid.New(), ProviderID: providerID, StartAt: start.Add(24 * time.Hour), EndAt: start.Add(72 * time.Hour)})
	})
	assert.ErrorIs(t, err, scheduling.ErrLeaveConflict)
}

func TestProviderLockTimesOut(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithProviderLock(ctx, providerID, time.Second, func(scheduling.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.WithProviderLock(ctx, providerID, 20*time.Millisecond, func(scheduling.Tx) error {
		t.Fatal("lock should not be acquired")
		return nil
	})
	assert.ErrorIs(t, err, scheduling.ErrTemporarilyUnavailable)

	err = s.WithProviderLock(ctx, uuid.New(), 20*time.Millisecond, func(scheduling.Tx) error { return nil })
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	err = s.WithProviderLock(ctx, providerID, 20*time.Millisecond, func(scheduling.Tx) error { return nil })
	assert.NoError(t, err)
}

func TestOutboxSource(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	env, err := events.NewEnvelope(uuid.New(), providerID, events.BookingEventV1{}, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		return tx.Enqueue(ctx, env)
	}))
	pending, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := s.MarkDelivered(ctx, env.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkDelivered(ctx, env.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err = s.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRollbackKeepsOtherProvidersCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerA, providerB := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	envA, err := events.NewEnvelope(uuid.New(), providerA, events.BookingEventV1{}, now)
	require.NoError(t, err)
	envB, err := events.NewEnvelope(uuid.New(), providerB, events.BookingEventV1{}, now)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithProviderLock(ctx, providerA, time.Second, func(tx scheduling.Tx) error {
		require.NoError(t, tx.Enqueue(ctx, envA))
		require.NoError(t, tx.AppendHistory(ctx, scheduling.HistoryEntry{BookingID: envA.AggregateID, NewStatus: scheduling.StatusRequested}))

		require.NoError(t, s.WithProviderLock(ctx, providerB, time.Second, func(tx scheduling.Tx) error {
			return tx.Enqueue(ctx, envB)
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, envB.ID, pending[0].ID)
	history, err := s.ListHistory(ctx, envA.AggregateID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUncommittedWritesAreHidden(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := booking(providerID, start)
	day := scheduling.TimeWindow{Start: start.Add(-10 * time.Hour), End: start.Add(14 * time.Hour)}

	require.NoError(t, s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		require.NoError(t, tx.InsertBooking(ctx, b))

		_, err := s.GetBooking(ctx, b.ID)
		assert.ErrorIs(t, err, scheduling.ErrNotFound)
		active, err := s.ListActiveBookings(ctx, providerID, day)
		require.NoError(t, err)
		assert.Empty(t, active)

		staged, err := tx.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, staged.ID)
		return nil
	}))

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusRequested, got.Status)
}

func TestTxReadsItsOwnWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	providerID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	first := booking(providerID, start)
	leave := &scheduling.LeavePeriod{ID: uuid.New(), ProviderID: providerID, StartAt: start.Add(24 * time.Hour), EndAt: start.Add(48 * time.Hour)}

	require.NoError(t, s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		if err := tx.InsertBooking(ctx, first); err != nil {
			return err
		}
		return tx.InsertLeave(ctx, leave)
	}))

	second := booking(providerID, start)
	replacement := &scheduling.LeavePeriod{ID: uuid.New(), ProviderID: providerID, StartAt: leave.StartAt, EndAt: leave.EndAt}
	require.NoError(t, s.WithProviderLock(ctx, providerID, time.Second, func(tx scheduling.Tx) error {
		cancelled := *first
		cancelled.Status = scheduling.StatusCancelled
		if err := tx.UpdateBooking(ctx, &cancelled); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, second); err != nil {
			return err
		}
		if err := tx.DeleteLeave(ctx, leave.ID); err != nil {
			return err
		}
		if _, err := tx.GetLeave(ctx, leave.ID); !errors.Is(err, scheduling.ErrNotFound) {
			return fmt.Errorf("deleted leave still visible: %v", err)
		}
		return tx.InsertLeave(ctx, replacement)
	}))

	active, err := s.ListActiveBookings(ctx, providerID, first.Window())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	leaves, err := s.ListLeaves(ctx, providerID, leave.Window())
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, replacement.ID, leaves[0].ID)
}
