package domain

import "time"

// IsWeekend reports whether wd is Saturday or Sunday.
func IsWeekend(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}

// TimeOfDay returns the wall-clock offset of t from its local midnight.
// It is computed from clock fields, so DST transition days do not skew it.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// DeadlineReached reports whether local time of day is at or past deadline.
func DeadlineReached(local time.Time, deadline time.Duration) bool {
	return TimeOfDay(local) >= deadline
}

// LocalNow is a user's view of an instant: the local time and its calendar date.
type LocalNow struct {
	Time  time.Time
	Today Date
}

// LocalizeIn converts a UTC instant into the zone's wall clock.
func LocalizeIn(nowUTC time.Time, z Zone) LocalNow {
	lt := nowUTC.In(z.Location())
	return LocalNow{Time: lt, Today: DateOf(lt)}
}
