package session

import "time"

// ResetHour is the brokerage's daily token reset boundary: every session
// token dies at 05:00 exchange-local time, regardless of when it was issued.
const ResetHour = 5

// NextResetAfter returns the next 05:00 wall-clock occurrence in loc strictly
// after t. A token issued exactly at the boundary lives until the next day's
// boundary; a token issued one second before it dies one second later.
func NextResetAfter(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	boundary := time.Date(lt.Year(), lt.Month(), lt.Day(), ResetHour, 0, 0, 0, loc)
	if !lt.Before(boundary) {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

// ValidAt reports whether the session is still usable at the given instant.
func (s Session) ValidAt(now time.Time, loc *time.Location) bool {
	if s.Token == "" || s.AcquiredAt.IsZero() {
		return false
	}
	return now.Before(NextResetAfter(s.AcquiredAt, loc))
}
