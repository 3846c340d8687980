package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/middleware"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// stubScheduler answers RequestBooking with a fixed error; any other call panics.
type stubScheduler struct {
	Scheduler
	err error
}

func (s *stubScheduler) RequestBooking(context.Context, scheduling.Actor, scheduling.BookingRequest) (*scheduling.Booking, error) {
	return nil, s.err
}

func TestStatusFor(t *testing.T) {
	cases := map[scheduling.Kind]int{
		scheduling.KindInvalidArgument:        http.StatusBadRequest,
		scheduling.KindRangeTooLarge:          http.StatusBadRequest,
		scheduling.KindUnauthorized:           http.StatusForbidden,
		scheduling.KindNotFound:               http.StatusNotFound,
		scheduling.KindSlotConflict:           http.StatusConflict,
		scheduling.KindLeaveConflict:          http.StatusConflict,
		scheduling.KindProviderOnLeave:        http.StatusConflict,
		scheduling.KindLeaveAlreadyStarted:    http.StatusConflict,
		scheduling.KindAlreadyElapsed:         http.StatusConflict,
		scheduling.KindInvalidState:           http.StatusConflict,
		scheduling.KindLeadTimeViolation:      http.StatusUnprocessableEntity,
		scheduling.KindInvalidDuration:        http.StatusUnprocessableEntity,
		scheduling.KindProviderUnavailable:    http.StatusUnprocessableEntity,
		scheduling.KindOutsideAvailability:    http.StatusUnprocessableEntity,
		scheduling.KindLeaveInPast:            http.StatusUnprocessableEntity,
		scheduling.KindLeaveTooLong:           http.StatusUnprocessableEntity,
		scheduling.KindTemporarilyUnavailable: http.StatusServiceUnavailable,
		scheduling.KindInternal:               http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func postBooking(t *testing.T, svc Scheduler, body string, withActor bool) *httptest.ResponseRecorder {
	t.Helper()
	h := NewSchedulingHandler(svc, logging.New("error"))
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(body))
	if withActor {
		req = req.WithContext(middleware.WithActor(req.Context(), scheduling.Actor{ID: uuid.New(), Role: scheduling.RoleSubject}))
	}
	rec := httptest.NewRecorder()
	h.CreateBooking(rec, req)
	return rec
}

func TestCreateBookingTemporarilyUnavailable(t *testing.T) {
	svc := &stubScheduler{err: scheduling.Errorf(scheduling.KindTemporarilyUnavailable, "provider is busy, retry")}
	rec := postBooking(t, svc, `{"channel":"remote"}`, true)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, scheduling.KindTemporarilyUnavailable, body.Error.Kind)
}

func TestCreateBookingHidesInternalErrors(t *testing.T) {
	svc := &stubScheduler{err: errors.New("pq: connection refused on 10.0.0.7")}
	rec := postBooking(t, svc, `{}`, true)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, scheduling.KindInternal, body.Error.Kind)
	assert.Equal(t, "internal error", body.Error.Message)
}

func TestCreateBookingRejectsBadBodies(t *testing.T) {
	svc := &stubScheduler{}

	rec := postBooking(t, svc, `{"channel":`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postBooking(t, svc, `{"surprise":true}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postBooking(t, svc, `{}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRuleRequestInput(t *testing.T) {
	var req RuleRequest
	require.NoError(t, json.Unmarshal([]byte(`{"channel":"home","date":"2026-03-09","start_time":"14:00","end_time":"24:00","slot_minutes":45}`), &req))

	in, ok := req.input()
	require.True(t, ok)
	assert.False(t, in.Recurring)
	require.NotNil(t, in.Date)
	assert.Equal(t, "2026-03-09", in.Date.Format("2006-01-02"))
	assert.Equal(t, scheduling.TimeOfDay(14*60), in.StartTime)
	assert.Equal(t, scheduling.TimeOfDay(24*60), in.EndTime)

	weekday := 7
	_, ok = RuleRequest{Date: "09/03/2026"}.input()
	assert.False(t, ok)
	in, ok = RuleRequest{Recurring: true, Weekday: &weekday}.input()
	assert.True(t, ok, "weekday range is checked by the service")
	assert.Equal(t, 7, int(in.Weekday))
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthCheckReportsDegradedDependency(t *testing.T) {
	h := HealthCheck(map[string]Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{err: errors.New("dial tcp: refused")},
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["postgres"])
	assert.Equal(t, "unavailable", body["redis"])
}
