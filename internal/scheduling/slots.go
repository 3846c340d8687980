package scheduling

import (
	"iter"
	"slices"
	"time"
)

// SlotQuery is the complete input of the slot generator. Generation performs
// no I/O, so identical queries always yield identical windows.
type SlotQuery struct {
	Location   *time.Location
	Channel    Channel
	Rules      []AvailabilityRule
	Leaves     []LeavePeriod
	Bookings   []Booking
	RangeStart time.Time
	RangeEnd   time.Time
	Now        time.Time
	LeadTime   time.Duration
	MaxRange   time.Duration
}

// GenerateSlots validates q and returns the bookable windows in ascending
// start order. The sequence is computed day by day as it is consumed and can
// be ranged over any number of times.
func GenerateSlots(q SlotQuery) (iter.Seq[TimeWindow], error) {
	if q.RangeEnd.Before(q.RangeStart) {
		return nil, Errorf(KindInvalidArgument, "range end %s is before range start %s",
			q.RangeEnd.Format(time.RFC3339), q.RangeStart.Format(time.RFC3339))
	}
	maxRange := q.MaxRange
	if maxRange <= 0 {
		maxRange = DefaultPolicy().MaxSlotRange
	}
	if q.RangeEnd.Sub(q.RangeStart) > maxRange {
		return nil, Errorf(KindRangeTooLarge, "range exceeds %s", maxRange)
	}
	if q.RangeStart.Before(q.Now) {
		q.RangeStart = q.Now
	}
	if q.Location == nil {
		q.Location = time.UTC
	}

	rules := make([]AvailabilityRule, 0, len(q.Rules))
	for _, r := range q.Rules {
		if !r.Active || r.SlotMinutes <= 0 || r.StartTime >= r.EndTime {
			continue
		}
		if q.Channel != "" && r.Channel != q.Channel {
			continue
		}
		rules = append(rules, r)
	}
	busy := make([]TimeWindow, 0, len(q.Bookings))
	for _, b := range q.Bookings {
		if b.Status.Active() {
			busy = append(busy, b.Window())
		}
	}
	away := leaveWindows(q.Leaves)
	earliest := q.Now.Add(q.LeadTime)
	bounds := TimeWindow{Start: q.RangeStart, End: q.RangeEnd}

	return func(yield func(TimeWindow) bool) {
		if !q.RangeStart.Before(q.RangeEnd) {
			return
		}
		for day := startOfDay(q.RangeStart, q.Location); day.Before(q.RangeEnd); day = nextDay(day) {
			if leaveCoversDay(q.Leaves, day) {
				continue
			}
			for _, w := range tileDay(day, q.Location, rules) {
				if !bounds.Contains(w) || w.Start.Before(earliest) {
					continue
				}
				if overlapsAny(w, away) || overlapsAny(w, busy) {
					continue
				}
				if !yield(w) {
					return
				}
			}
		}
	}, nil
}

// RuleWindows returns the tiled windows of the given local date before any
// lead-time, leave or booking filtering.
func RuleWindows(day time.Time, loc *time.Location, rules []AvailabilityRule) []TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	active := make([]AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		if r.Active && r.SlotMinutes > 0 && r.StartTime < r.EndTime {
			active = append(active, r)
		}
	}
	return tileDay(startOfDay(day, loc), loc, active)
}

// selectRules applies day precedence: date-specific rules for the date
// replace the recurring weekday rules entirely.
func selectRules(day time.Time, rules []AvailabilityRule) []AvailabilityRule {
	var specific, recurring []AvailabilityRule
	for _, r := range rules {
		switch {
		case r.AppliesOn(day):
			specific = append(specific, r)
		case r.Recurring && r.Weekday == day.Weekday():
			recurring = append(recurring, r)
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return recurring
}

// tileDay cuts each selected rule into fixed windows, dropping a trailing
// partial window, and returns them sorted and de-duplicated.
func tileDay(day time.Time, loc *time.Location, rules []AvailabilityRule) []TimeWindow {
	var out []TimeWindow
	for _, r := range selectRules(day, rules) {
		open := r.StartTime.On(day, loc)
		closeAt := r.EndTime.On(day, loc)
		step := r.SlotDuration()
		for cur := open; !cur.Add(step).After(closeAt); cur = cur.Add(step) {
			out = append(out, TimeWindow{Start: cur, End: cur.Add(step)})
		}
	}
	slices.SortFunc(out, func(a, b TimeWindow) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
	return slices.CompactFunc(out, func(a, b TimeWindow) bool {
		return a.Start.Equal(b.Start) && a.End.Equal(b.End)
	})
}

func leaveCoversDay(leaves []LeavePeriod, day time.Time) bool {
	whole := TimeWindow{Start: day, End: nextDay(day)}
	for _, l := range leaves {
		if l.Window().Contains(whole) {
			return true
		}
	}
	return false
}

func leaveWindows(leaves []LeavePeriod) []TimeWindow {
	out := make([]TimeWindow, len(leaves))
	for i, l := range leaves {
		out[i] = l.Window()
	}
	return out
}

func overlapsAny(w TimeWindow, others []TimeWindow) bool {
	for _, o := range others {
		if w.Overlaps(o) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

// DaySlots groups windows by the provider-local date they start on.
type DaySlots struct {
	Date    string       `json:"date"`
	Windows []TimeWindow `json:"windows"`
}

// GroupByDate collects seq into per-date buckets, preserving order.
func GroupByDate(seq iter.Seq[TimeWindow], loc *time.Location) []DaySlots {
	if loc == nil {
		loc = time.UTC
	}
	var out []DaySlots
	for w := range seq {
		date := w.Start.In(loc).Format(time.DateOnly)
		if n := len(out); n > 0 && out[n-1].Date == date {
			out[n-1].Windows = append(out[n-1].Windows, w)
			continue
		}
		out = append(out, DaySlots{Date: date, Windows: []TimeWindow{w}})
	}
	return out
}
