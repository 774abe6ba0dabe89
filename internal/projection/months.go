package projection

import "time"

// AddMonths moves t by n calendar months. When the day of month does not exist in
// the target month it is clamped to that month's last day, so Jan 31 + 1 month is
// Feb 28 (or 29) and Feb 29 - 12 months is Feb 28. The time of day and location
// are preserved.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	loc := t.Location()

	// time.Date normalizes months outside 1..12 into the neighbouring years.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, loc)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), loc)
}

// MonthStart returns midnight of the first day of t's month, in t's location.
func MonthStart(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}

// SameMonth reports whether a and b fall in the same calendar month of a's location.
func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// monthLabel formats a month as MM/YYYY.
func monthLabel(t time.Time) string {
	return t.Format("01/2006")
}
