package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/middleware"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// Scheduler is the subset of scheduling.Service the HTTP layer drives.
type Scheduler interface {
	ListAvailableSlots(ctx context.Context, req scheduling.SlotRequest) ([]scheduling.DaySlots, error)
	RequestBooking(ctx context.Context, actor scheduling.Actor, req scheduling.BookingRequest) (*scheduling.Booking, error)
	Respond(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID, decision scheduling.Decision, reason string) (*scheduling.Booking, error)
	Cancel(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID, reason string) (*scheduling.Booking, error)
	Reschedule(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID, req scheduling.RescheduleRequest) (*scheduling.Booking, error)
	Complete(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID) (*scheduling.Booking, error)
	GetBooking(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID) (*scheduling.Booking, error)
	BookingHistory(ctx context.Context, actor scheduling.Actor, bookingID uuid.UUID) ([]scheduling.HistoryEntry, error)
	AddLeave(ctx context.Context, actor scheduling.Actor, providerID uuid.UUID, req scheduling.LeaveRequest) (*scheduling.LeaveResult, error)
	SweepLeave(ctx context.Context, actor scheduling.Actor, leaveID uuid.UUID) (*scheduling.LeaveResult, error)
	RemoveLeave(ctx context.Context, actor scheduling.Actor, leaveID uuid.UUID) error
	ListLeaves(ctx context.Context, providerID uuid.UUID, window scheduling.TimeWindow) ([]scheduling.LeavePeriod, error)
	CreateRule(ctx context.Context, actor scheduling.Actor, providerID uuid.UUID, in scheduling.RuleInput) (*scheduling.AvailabilityRule, error)
	UpdateRule(ctx context.Context, actor scheduling.Actor, ruleID uuid.UUID, in scheduling.RuleInput) (*scheduling.AvailabilityRule, error)
	DisableRule(ctx context.Context, actor scheduling.Actor, ruleID uuid.UUID) (*scheduling.AvailabilityRule, error)
	ListRules(ctx context.Context, providerID uuid.UUID, includeInactive bool) ([]scheduling.AvailabilityRule, error)
}

var _ Scheduler = (*scheduling.Service)(nil)

// SchedulingHandler exposes slots, bookings, leaves and availability rules.
type SchedulingHandler struct {
	svc    Scheduler
	logger *logging.Logger
}

// NewSchedulingHandler creates a new scheduling handler.
func NewSchedulingHandler(svc Scheduler, logger *logging.Logger) *SchedulingHandler {
	if svc == nil {
		panic("handlers: scheduler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingHandler{svc: svc, logger: logger}
}

// SlotsResponse groups free windows by the provider's local date.
type SlotsResponse struct {
	ProviderID uuid.UUID             `json:"provider_id"`
	Channel    scheduling.Channel    `json:"channel"`
	Days       []scheduling.DaySlots `json:"days"`
}

// ListSlots returns the free windows of a provider.
// GET /providers/{providerID}/slots?channel=&from=&to=&urgency=
func (h *SchedulingHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	channel := scheduling.Channel(q.Get("channel"))
	days, err := h.svc.ListAvailableSlots(r.Context(), scheduling.SlotRequest{
		ProviderID: providerID,
		Channel:    channel,
		Urgency:    scheduling.Urgency(q.Get("urgency")),
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if days == nil {
		days = []scheduling.DaySlots{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{ProviderID: providerID, Channel: channel, Days: days})
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	ProviderID uuid.UUID          `json:"provider_id"`
	Channel    scheduling.Channel `json:"channel"`
	StartAt    time.Time          `json:"start_at"`
	EndAt      time.Time          `json:"end_at"`
	Urgency    scheduling.Urgency `json:"urgency,omitempty"`
	Notes      string             `json:"notes,omitempty"`
}

// CreateBooking reserves a window for the calling subject.
// POST /bookings
func (h *SchedulingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	booking, err := h.svc.RequestBooking(r.Context(), actor, scheduling.BookingRequest{
		ProviderID: req.ProviderID,
		Channel:    req.Channel,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Urgency:    req.Urgency,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// GetBooking returns a booking to one of its parties.
// GET /bookings/{bookingID}
func (h *SchedulingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	booking, err := h.svc.GetBooking(r.Context(), actor, bookingID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// BookingHistory returns the audit trail of a booking.
// GET /bookings/{bookingID}/history
func (h *SchedulingHandler) BookingHistory(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	history, err := h.svc.BookingHistory(r.Context(), actor, bookingID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if history == nil {
		history = []scheduling.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// RespondRequest is the provider's decision on a requested booking.
type RespondRequest struct {
	Decision scheduling.Decision `json:"decision"`
	Reason   string              `json:"reason,omitempty"`
}

// RespondToBooking accepts or rejects a requested booking.
// POST /bookings/{bookingID}/respond
func (h *SchedulingHandler) RespondToBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	var req RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Decision != scheduling.DecisionAccept && req.Decision != scheduling.DecisionReject {
		badRequest(w, "decision must be accept or reject")
		return
	}
	booking, err := h.svc.Respond(r.Context(), actor, bookingID, req.Decision, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ReasonRequest carries a free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels a booking and applies the fee policy.
// POST /bookings/{bookingID}/cancel
func (h *SchedulingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	booking, err := h.svc.Cancel(r.Context(), actor, bookingID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// RescheduleBookingRequest moves a confirmed booking.
type RescheduleBookingRequest struct {
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Reason        string    `json:"reason"`
	MutualConsent bool      `json:"mutual_consent,omitempty"`
}

// RescheduleBooking returns the replacement booking.
// POST /bookings/{bookingID}/reschedule
func (h *SchedulingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	var req RescheduleBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	booking, err := h.svc.Reschedule(r.Context(), actor, bookingID, scheduling.RescheduleRequest{
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Reason:        req.Reason,
		MutualConsent: req.MutualConsent,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// CompleteBooking marks a held consultation as completed.
// POST /bookings/{bookingID}/complete
func (h *SchedulingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := actorAndID(w, r, "bookingID")
	if !ok {
		return
	}
	booking, err := h.svc.Complete(r.Context(), actor, bookingID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// AddLeaveRequest is the body of POST /providers/{providerID}/leaves.
type AddLeaveRequest struct {
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Reason        string    `json:"reason"`
	CascadeCancel bool      `json:"cascade_cancel"`
}

// AddLeave records provider leave, cancelling overlapping bookings on request.
// POST /providers/{providerID}/leaves
func (h *SchedulingHandler) AddLeave(w http.ResponseWriter, r *http.Request) {
	actor, providerID, ok := actorAndID(w, r, "providerID")
	if !ok {
		return
	}
	var req AddLeaveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	result, err := h.svc.AddLeave(r.Context(), actor, providerID, scheduling.LeaveRequest{
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Reason:        req.Reason,
		CascadeCancel: req.CascadeCancel,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, leaveResponse(result))
}

// SweepLeave cancels the next batch of bookings left over by a cascade.
// POST /leaves/{leaveID}/sweep
func (h *SchedulingHandler) SweepLeave(w http.ResponseWriter, r *http.Request) {
	actor, leaveID, ok := actorAndID(w, r, "leaveID")
	if !ok {
		return
	}
	result, err := h.svc.SweepLeave(r.Context(), actor, leaveID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leaveResponse(result))
}

// RemoveLeave deletes a leave that has not started yet.
// DELETE /leaves/{leaveID}
func (h *SchedulingHandler) RemoveLeave(w http.ResponseWriter, r *http.Request) {
	actor, leaveID, ok := actorAndID(w, r, "leaveID")
	if !ok {
		return
	}
	if err := h.svc.RemoveLeave(r.Context(), actor, leaveID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLeaves returns leaves overlapping [from, to).
// GET /providers/{providerID}/leaves?from=&to=
func (h *SchedulingHandler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}
	from, to, ok := timeRange(w, r)
	if !ok {
		return
	}
	if !from.Before(to) {
		badRequest(w, "from must be before to")
		return
	}
	leaves, err := h.svc.ListLeaves(r.Context(), providerID, scheduling.TimeWindow{Start: from, End: to})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if leaves == nil {
		leaves = []scheduling.LeavePeriod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaves": leaves})
}

// RuleRequest describes an availability rule. Recurring rules carry a weekday
// (0 = Sunday); date rules carry a YYYY-MM-DD date.
type RuleRequest struct {
	Channel     scheduling.Channel   `json:"channel"`
	Recurring   bool                 `json:"recurring"`
	Weekday     *int                 `json:"weekday,omitempty"`
	Date        string               `json:"date,omitempty"`
	StartTime   scheduling.TimeOfDay `json:"start_time"`
	EndTime     scheduling.TimeOfDay `json:"end_time"`
	SlotMinutes int                  `json:"slot_minutes"`
}

func (req RuleRequest) input() (scheduling.RuleInput, bool) {
	in := scheduling.RuleInput{
		Channel:     req.Channel,
		Recurring:   req.Recurring,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SlotMinutes: req.SlotMinutes,
		Weekday:     -1,
	}
	if req.Weekday != nil {
		in.Weekday = time.Weekday(*req.Weekday)
	}
	if req.Date != "" {
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			return in, false
		}
		in.Date = &date
	}
	return in, true
}

// CreateRule adds an availability rule for the calling provider.
// POST /providers/{providerID}/rules
func (h *SchedulingHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	actor, providerID, ok := actorAndID(w, r, "providerID")
	if !ok {
		return
	}
	in, ok := decodeRule(w, r)
	if !ok {
		return
	}
	rule, err := h.svc.CreateRule(r.Context(), actor, providerID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces an availability rule.
// PUT /rules/{ruleID}
func (h *SchedulingHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	actor, ruleID, ok := actorAndID(w, r, "ruleID")
	if !ok {
		return
	}
	in, ok := decodeRule(w, r)
	if !ok {
		return
	}
	rule, err := h.svc.UpdateRule(r.Context(), actor, ruleID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DisableRule deactivates an availability rule.
// DELETE /rules/{ruleID}
func (h *SchedulingHandler) DisableRule(w http.ResponseWriter, r *http.Request) {
	actor, ruleID, ok := actorAndID(w, r, "ruleID")
	if !ok {
		return
	}
	rule, err := h.svc.DisableRule(r.Context(), actor, ruleID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListRules returns the provider's rules.
// GET /providers/{providerID}/rules?include_inactive=true
func (h *SchedulingHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	providerID, ok := uuidParam(w, r, "providerID")
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	rules, err := h.svc.ListRules(r.Context(), providerID, includeInactive)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if rules == nil {
		rules = []scheduling.AvailabilityRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func decodeRule(w http.ResponseWriter, r *http.Request) (scheduling.RuleInput, bool) {
	var req RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return scheduling.RuleInput{}, false
	}
	in, ok := req.input()
	if !ok {
		badRequest(w, "date must be YYYY-MM-DD")
		return scheduling.RuleInput{}, false
	}
	return in, true
}

func leaveResponse(result *scheduling.LeaveResult) *scheduling.LeaveResult {
	if result != nil && result.Cancelled == nil {
		result.Cancelled = []scheduling.Booking{}
	}
	return result
}

func requireActor(w http.ResponseWriter, r *http.Request) (scheduling.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{Kind: scheduling.KindUnauthorized, Message: "authentication required"}})
		return scheduling.Actor{}, false
	}
	return actor, true
}

func actorAndID(w http.ResponseWriter, r *http.Request, param string) (scheduling.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return scheduling.Actor{}, uuid.Nil, false
	}
	id, ok := uuidParam(w, r, param)
	return actor, id, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil {
		badRequest(w, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func timeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		badRequest(w, "from must be an RFC3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		badRequest(w, "to must be an RFC3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
