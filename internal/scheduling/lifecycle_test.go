package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from BookingStatus
		t    Transition
		want BookingStatus
		ok   bool
	}{
		{StatusRequested, TransitionAccept, StatusConfirmed, true},
		{StatusRequested, TransitionReject, StatusRejected, true},
		{StatusRequested, TransitionCancel, StatusCancelled, true},
		{StatusRequested, TransitionReschedule, "", false},
		{StatusConfirmed, TransitionCancel, StatusCancelled, true},
		{StatusConfirmed, TransitionReschedule, StatusCancelled, true},
		{StatusConfirmed, TransitionComplete, StatusCompleted, true},
		{StatusConfirmed, TransitionAccept, "", false},
		{StatusCancelled, TransitionCancel, "", false},
		{StatusRejected, TransitionAccept, "", false},
		{StatusCompleted, TransitionCancel, "", false},
	}
	for _, tc := range cases {
		got, err := NextStatus(tc.from, tc.t)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidState, "%s -> %s", tc.from, tc.t)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestApplyRecordsHistory(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	actor := Actor{ID: uuid.New(), Role: RoleProvider}
	b := &Booking{ID: uuid.New(), Status: StatusRequested}

	entry, err := apply(b, TransitionAccept, actor, "see you", now)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)
	require.NotNil(t, b.RespondedAt)
	assert.Equal(t, now, *b.RespondedAt)
	assert.Equal(t, StatusRequested, entry.PreviousStatus)
	assert.Equal(t, StatusConfirmed, entry.NewStatus)
	assert.Equal(t, actor.ID, entry.ActorID)
	assert.Equal(t, "see you", entry.Reason)

	_, err = apply(b, TransitionAccept, actor, "", now)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StatusConfirmed, b.Status)
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindSlotConflict, "taken")
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindSlotConflict, KindOf(err))
	assert.Equal(t, "taken", PublicMessage(err))

	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "internal error", PublicMessage(Wrap(KindInternal, assert.AnError, "db down")))
}
