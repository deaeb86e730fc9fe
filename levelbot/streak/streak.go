// Package streak tracks consecutive active days.
package streak

import "time"

// DayLayout is the calendar day format used by every day-scoped field.
const DayLayout = "2006-01-02"

type State struct {
	Count    int
	LastDate string
}

// Advance returns the state after activity on today. Days are compared as
// calendar dates in the caller's timezone.
func Advance(s State, today time.Time) State {
	day := today.Format(DayLayout)
	switch s.LastDate {
	case "":
		return State{Count: 1, LastDate: day}
	case day:
		return s
	case today.AddDate(0, 0, -1).Format(DayLayout):
		return State{Count: s.Count + 1, LastDate: day}
	default:
		return State{Count: 1, LastDate: day}
	}
}

// Bonus is the flat XP added for a streak of count days.
func Bonus(count int) int64 {
	switch {
	case count >= 30:
		return 5
	case count >= 14:
		return 3
	case count >= 7:
		return 2
	default:
		return 0
	}
}
