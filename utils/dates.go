// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DateBucket formats a timestamp as its calendar-day bucket, used when keying
// dedup entries so two ticks on the same day collapse onto one key.
func DateBucket(t time.Time) string {
	return t.Format("2006-01-02")
}
