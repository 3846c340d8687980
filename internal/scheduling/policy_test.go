package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancellationFeeTiers(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		lead time.Duration
		by   Role
		want int64
	}{
		{"exactly 24h is free", 24 * time.Hour, RoleSubject, 0},
		{"just under 24h", 24*time.Hour - time.Nanosecond, RoleSubject, 2500},
		{"exactly 12h is 25%", 12 * time.Hour, RoleSubject, 2500},
		{"just under 12h", 12*time.Hour - time.Minute, RoleSubject, 5000},
		{"exactly 2h is 50%", 2 * time.Hour, RoleSubject, 5000},
		{"under 2h is full", 2*time.Hour - time.Minute, RoleSubject, 10000},
		{"provider with notice", 2 * time.Hour, RoleProvider, 0},
		{"provider within 12h", 5 * time.Hour, RoleProvider, 0},
		{"provider under 2h", time.Hour, RoleProvider, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CancellationFee(10000, start, start.Add(-tc.lead), tc.by))
		})
	}
}

func TestRescheduleFee(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1000), RescheduleFee(10000, start, start.Add(-23*time.Hour), RoleSubject))
	assert.Equal(t, int64(0), RescheduleFee(10000, start, start.Add(-24*time.Hour), RoleSubject))
	assert.Equal(t, int64(0), RescheduleFee(10000, start, start.Add(-time.Hour), RoleProvider))
}

func TestPolicyNormalize(t *testing.T) {
	p := Policy{RoutineLeadTime: time.Hour}.Normalize()
	assert.Equal(t, time.Hour, p.RoutineLeadTime)
	assert.Equal(t, UrgentLeadTime, p.UrgentLeadTime)
	assert.Equal(t, 50, p.LeaveCascadeCap)
	assert.Equal(t, 5*time.Second, p.LockTimeout)
	assert.Equal(t, UrgentLeadTime, p.LeadTime(UrgencyUrgent))
	assert.Equal(t, time.Hour, p.LeadTime(UrgencyRoutine))
}
