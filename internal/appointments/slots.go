package appointments

import "time"

// SlotWindow describes the bookable grid for a doctor: hourly slots inside
// a daily operating window, over a lookahead of whole days.
type SlotWindow struct {
	LookaheadDays int
	DayStartHour  int
	DayEndHour    int
	Location      *time.Location
}

// DefaultSlotWindow is a 7-day lookahead of 09:00-17:00 hourly slots.
func DefaultSlotWindow() SlotWindow {
	return SlotWindow{
		LookaheadDays: 7,
		DayStartHour:  9,
		DayEndHour:    17,
		Location:      time.UTC,
	}
}

func (w SlotWindow) normalized() SlotWindow {
	if w.LookaheadDays <= 0 {
		w.LookaheadDays = 7
	}
	if w.DayEndHour <= w.DayStartHour {
		w.DayStartHour = 9
		w.DayEndHour = 17
	}
	if w.Location == nil {
		w.Location = time.UTC
	}
	return w
}

// Bounds returns the [from, to) interval covered by the window starting at now.
func (w SlotWindow) Bounds(now time.Time) (time.Time, time.Time) {
	w = w.normalized()
	day := now.In(w.Location)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, w.Location)
	return start, start.AddDate(0, 0, w.LookaheadDays)
}

// FreeSlots enumerates the bookable instants inside the window that do not
// collide with any booked instant and are strictly in the future.
//
// Collision is exact-instant: a booking blocks only the slot whose normalized
// instant it equals, regardless of how long the appointment runs.
func FreeSlots(w SlotWindow, booked []time.Time, now time.Time) []time.Time {
	w = w.normalized()

	taken := make(map[time.Time]struct{}, len(booked))
	for _, b := range booked {
		taken[NormalizeInstant(b)] = struct{}{}
	}

	day := now.In(w.Location)
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, w.Location)

	var free []time.Time
	for d := 0; d < w.LookaheadDays; d++ {
		date := midnight.AddDate(0, 0, d)
		for h := w.DayStartHour; h < w.DayEndHour; h++ {
			candidate := date.Add(time.Duration(h) * time.Hour)
			if !candidate.After(now) {
				continue
			}
			if _, ok := taken[NormalizeInstant(candidate)]; ok {
				continue
			}
			free = append(free, candidate.UTC())
		}
	}
	return free
}
