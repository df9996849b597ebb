package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhollis/warren/pkg/ledger"
)

// 2026-03-02 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
}

func TestDueTime(t *testing.T) {
	t.Run("nil schedule is due immediately", func(t *testing.T) {
		now := monday(10, 30)
		due, err := DueTime(now, nil)
		require.NoError(t, err)
		assert.Equal(t, now, due)
	})

	t.Run("empty schedule is due immediately", func(t *testing.T) {
		now := monday(10, 30)
		due, err := DueTime(now, &ledger.Schedule{})
		require.NoError(t, err)
		assert.Equal(t, now, due)
	})

	t.Run("after anchor later today", func(t *testing.T) {
		now := monday(8, 0)
		due, err := DueTime(now, &ledger.Schedule{TimeOfDayAfter: "09:00"})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0), due)
	})

	t.Run("after anchor already passed rolls to tomorrow", func(t *testing.T) {
		now := monday(10, 0)
		due, err := DueTime(now, &ledger.Schedule{TimeOfDayAfter: "09:00"})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0).AddDate(0, 0, 1), due)
	})

	t.Run("after anchor exactly now rolls to tomorrow", func(t *testing.T) {
		now := monday(9, 0)
		due, err := DueTime(now, &ledger.Schedule{TimeOfDayAfter: "09:00"})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0).AddDate(0, 0, 1), due)
	})

	t.Run("weekday set advances to next allowed day", func(t *testing.T) {
		// Monday is allowed, so 09:00 later today qualifies.
		now := monday(8, 0)
		due, err := DueTime(now, &ledger.Schedule{
			TimeOfDayAfter: "09:00",
			DaysOfWeek:     []int{1, 3, 5}, // Mon, Wed, Fri
		})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0), due)

		// Past today's anchor the candidate is Tuesday, which is not
		// allowed; Wednesday 09:00 is next.
		now = monday(10, 0)
		due, err = DueTime(now, &ledger.Schedule{
			TimeOfDayAfter: "09:00",
			DaysOfWeek:     []int{1, 3, 5},
		})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0).AddDate(0, 0, 2), due)
	})

	t.Run("weekday set without after time", func(t *testing.T) {
		// Sunday-only schedule evaluated on a Monday lands on next
		// Sunday at midnight.
		now := monday(10, 0)
		due, err := DueTime(now, &ledger.Schedule{DaysOfWeek: []int{0}})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC), due)
		assert.Equal(t, time.Sunday, due.Weekday())
	})

	t.Run("before bound pushes past-window candidate to next day", func(t *testing.T) {
		// The window is 09:00-11:00 and now is already past it.
		now := monday(12, 0)
		due, err := DueTime(now, &ledger.Schedule{
			TimeOfDayAfter:  "09:00",
			TimeOfDayBefore: "11:00",
		})
		require.NoError(t, err)
		assert.Equal(t, monday(9, 0).AddDate(0, 0, 1), due)
	})

	t.Run("before bound alone keeps an in-window now", func(t *testing.T) {
		now := monday(10, 0)
		due, err := DueTime(now, &ledger.Schedule{TimeOfDayBefore: "17:00"})
		require.NoError(t, err)
		assert.Equal(t, now, due)
	})

	t.Run("before bound alone pushes past-window now to next midnight", func(t *testing.T) {
		now := monday(18, 0)
		due, err := DueTime(now, &ledger.Schedule{TimeOfDayBefore: "17:00"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), due)
	})

	t.Run("combined window and weekday set", func(t *testing.T) {
		// Friday-only window 09:00-11:00 evaluated Monday noon.
		now := monday(12, 0)
		due, err := DueTime(now, &ledger.Schedule{
			TimeOfDayAfter:  "09:00",
			TimeOfDayBefore: "11:00",
			DaysOfWeek:      []int{5},
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC), due)
		assert.Equal(t, time.Friday, due.Weekday())
	})

	t.Run("rejects malformed clock", func(t *testing.T) {
		_, err := DueTime(monday(8, 0), &ledger.Schedule{TimeOfDayAfter: "9am"})
		assert.Error(t, err)
	})
}
