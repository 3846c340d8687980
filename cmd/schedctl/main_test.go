package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling/memstore"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type testApp struct {
	store    *memstore.Store
	svc      *scheduling.Service
	provider scheduling.Actor
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memstore.New()
	provider := scheduling.Actor{ID: uuid.New(), Role: scheduling.RoleProvider}
	store.PutProvider(scheduling.Provider{
		ID:       provider.ID,
		TimeZone: "UTC",
		Active:   true,
		Fees:     map[scheduling.Channel]int64{scheduling.ChannelOnSite: 8000},
	})
	svc := scheduling.NewService(store, logging.New("error")).
		WithClock(func() time.Time { return monday.Add(-24 * time.Hour) }).
		WithPolicy(scheduling.Policy{LeaveCascadeCap: 1})
	_, err := svc.CreateRule(context.Background(), provider, provider.ID, scheduling.RuleInput{
		Channel:     scheduling.ChannelOnSite,
		Recurring:   true,
		Weekday:     time.Monday,
		StartTime:   scheduling.MustTimeOfDay("09:00"),
		EndTime:     scheduling.MustTimeOfDay("12:00"),
		SlotMinutes: 30,
	})
	require.NoError(t, err)
	return &testApp{store: store, svc: svc, provider: provider}
}

func (ta *testApp) opener() opener {
	return func(context.Context) (*app, error) {
		return &app{svc: ta.svc, providers: ta.store, close: func() {}}, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSlotsCommand(t *testing.T) {
	ta := newTestApp(t)

	out, err := run(t, ta.opener(), "slots", ta.provider.ID.String(), "--from", "2026-03-02", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-03-02\n")
	assert.Equal(t, 6, strings.Count(out, " - "))
	assert.Contains(t, out, "  09:00 - 09:30\n")
	assert.Contains(t, out, "  11:30 - 12:00\n")

	out, err = run(t, ta.opener(), "slots", ta.provider.ID.String(), "--from", "2026-03-03", "--days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "no free windows")
}

func TestSlotsCommandRejectsBadInput(t *testing.T) {
	ta := newTestApp(t)

	_, err := run(t, ta.opener(), "slots", "not-a-uuid")
	assert.Error(t, err)

	_, err = run(t, ta.opener(), "slots", ta.provider.ID.String(), "--from", "03/02/2026")
	assert.Error(t, err)

	_, err = run(t, ta.opener(), "slots", ta.provider.ID.String(), "--channel", "carrier-pigeon", "--from", "2026-03-02")
	assert.True(t, scheduling.KindOf(err) == scheduling.KindInvalidArgument, "got %v", err)
}

func TestLeaveSweepCommand(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	for _, start := range []string{"09:00", "10:00"} {
		subject := scheduling.Actor{ID: uuid.New(), Role: scheduling.RoleSubject}
		s := scheduling.MustTimeOfDay(start).On(monday, time.UTC)
		_, err := ta.svc.RequestBooking(ctx, subject, scheduling.BookingRequest{
			ProviderID: ta.provider.ID,
			Channel:    scheduling.ChannelOnSite,
			StartAt:    s,
			EndAt:      s.Add(30 * time.Minute),
		})
		require.NoError(t, err)
	}
	result, err := ta.svc.AddLeave(ctx, ta.provider, ta.provider.ID, scheduling.LeaveRequest{
		StartAt:       monday,
		EndAt:         monday.Add(24 * time.Hour),
		Reason:        "family emergency",
		CascadeCancel: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Cancelled, 1)
	require.Equal(t, 1, result.Remaining)

	_, err = run(t, ta.opener(), "leave", "sweep", result.Leave.ID.String())
	assert.Error(t, err, "operator id is required")

	out, err := run(t, ta.opener(), "leave", "sweep", result.Leave.ID.String(), "--operator-id", uuid.NewString())
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled 1 bookings, 0 remaining")
}

func TestProviderPutCommand(t *testing.T) {
	ta := newTestApp(t)
	id := uuid.New()

	out, err := run(t, ta.opener(), "provider", "put", id.String(),
		"--name", "Dr. Traore", "--time-zone", "Africa/Abidjan", "--fee", "remote=4500", "--fee", "home=12000")
	require.NoError(t, err)
	assert.Contains(t, out, "saved with 2 channels")

	p, err := ta.store.GetProvider(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Traore", p.DisplayName)
	assert.True(t, p.Active)
	assert.Equal(t, int64(4500), p.Fees[scheduling.ChannelRemote])
	assert.Equal(t, int64(12000), p.Fees[scheduling.ChannelHome])
}

func TestParseFees(t *testing.T) {
	fees, err := parseFees([]string{"on_site=15000", " remote = 0"})
	require.NoError(t, err)
	assert.Equal(t, map[scheduling.Channel]int64{scheduling.ChannelOnSite: 15000, scheduling.ChannelRemote: 0}, fees)

	for _, bad := range []string{"on_site", "teleport=100", "home=-5", "home=ten"} {
		_, err := parseFees([]string{bad})
		assert.Error(t, err, bad)
	}
}
