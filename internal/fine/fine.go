// Package fine computes late-return penalties for loans.
package fine

import "time"

// GracePeriod is how long after checkout a return never accrues a fine.
const GracePeriod = 30 * time.Minute

// Daily rates for each tier of overdue days.
const (
	RateMinor    = 200  // days 1-3
	RateModerate = 500  // days 4-7
	RateSevere   = 1000 // day 8 onwards
)

// Tier upper bounds, in late days.
const (
	MinorDays    = 3
	ModerateDays = 7
)

// Compute returns the fine for a loan started at loanStart, returned at
// returnTime and due on the calendar day of due.
func Compute(loanStart, returnTime, due time.Time) int {
	if returnTime.Sub(loanStart) < GracePeriod {
		return 0
	}
	return forDays(LateDays(returnTime, due))
}

// Preview is the fine a loan would carry if it were returned at now.
func Preview(loanStart, now, due time.Time) int {
	return Compute(loanStart, now, due)
}

// LateDays returns the whole calendar days between due and returnTime,
// or 0 when returnTime falls on or before the due day. Each instant is
// read in its own location.
func LateDays(returnTime, due time.Time) int {
	days := int(civilDate(returnTime).Sub(civilDate(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func forDays(late int) int {
	if late <= 0 {
		return 0
	}

	total := 0
	if late > ModerateDays {
		total += (late - ModerateDays) * RateSevere
		late = ModerateDays
	}
	if late > MinorDays {
		total += (late - MinorDays) * RateModerate
		late = MinorDays
	}
	total += late * RateMinor

	return total
}

// civilDate maps t to midnight UTC of its calendar day, so that
// subtracting two civil dates never crosses a DST change.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
