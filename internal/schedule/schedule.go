// Package schedule converts a deliverable's declarative timing conditions
// into a concrete future due time. It only computes timestamps; nothing
// here sleeps or dispatches.
package schedule

import (
	"fmt"
	"time"

	"github.com/mhollis/warren/pkg/ledger"
)

// DueTime computes when an evaluation becomes due, given the current time
// and the deliverable's schedule.
//
// With no schedule the evaluation is due immediately. time_of_day_after
// "HH:MM" anchors the candidate at today's HH:MM, advanced one day if that
// has already passed. A days_of_week set (0-6, Sunday=0) advances the
// candidate day-by-day until its weekday qualifies. time_of_day_before is
// a narrowing bound: a candidate past it is pushed to the next eligible
// day rather than failing.
func DueTime(now time.Time, s *ledger.Schedule) (time.Time, error) {
	if s == nil || (s.TimeOfDayAfter == "" && s.TimeOfDayBefore == "" && len(s.DaysOfWeek) == 0) {
		return now, nil
	}

	var afterH, afterM int
	hasAfter := s.TimeOfDayAfter != ""
	if hasAfter {
		var err error
		afterH, afterM, err = parseClock(s.TimeOfDayAfter)
		if err != nil {
			return time.Time{}, fmt.Errorf("time_of_day_after: %w", err)
		}
	}

	var beforeH, beforeM int
	hasBefore := s.TimeOfDayBefore != ""
	if hasBefore {
		var err error
		beforeH, beforeM, err = parseClock(s.TimeOfDayBefore)
		if err != nil {
			return time.Time{}, fmt.Errorf("time_of_day_before: %w", err)
		}
	}

	candidate := now
	if hasAfter {
		candidate = time.Date(now.Year(), now.Month(), now.Day(), afterH, afterM, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}

	// Bounded walk: a non-empty weekday set always matches within 7 days,
	// and the before bound resets the clock to the window start on each
	// advanced day, so one extra iteration suffices.
	for i := 0; i < 8; i++ {
		if !weekdayAllowed(candidate, s.DaysOfWeek) {
			candidate = nextWindowDay(candidate, hasAfter, afterH, afterM)
			continue
		}
		if hasBefore {
			bound := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), beforeH, beforeM, 0, 0, candidate.Location())
			if candidate.After(bound) {
				candidate = nextWindowDay(candidate, hasAfter, afterH, afterM)
				continue
			}
		}
		return candidate, nil
	}

	return time.Time{}, fmt.Errorf("no eligible day within a week for schedule %+v", s)
}

// nextWindowDay advances to the following day at the window start: the
// after time when one is set, otherwise midnight.
func nextWindowDay(t time.Time, hasAfter bool, afterH, afterM int) time.Time {
	next := t.AddDate(0, 0, 1)
	if hasAfter {
		return time.Date(next.Year(), next.Month(), next.Day(), afterH, afterM, 0, 0, next.Location())
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}

func weekdayAllowed(t time.Time, days []int) bool {
	if len(days) == 0 {
		return true
	}
	weekday := int(t.Weekday()) // Sunday=0, matching the schedule encoding
	for _, day := range days {
		if day == weekday {
			return true
		}
	}
	return false
}

// parseClock parses "HH:MM" into hour and minute components.
func parseClock(clock string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM): %w", clock, err)
	}
	return t.Hour(), t.Minute(), nil
}
