package textutil

import (
	"math"
	"time"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

const isoLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t as a UTC ISO-8601 timestamp with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// NowISO returns the current time as an ISO-8601 timestamp.
func NowISO() string {
	return FormatTime(timeNow())
}

// EpochSecondsToISO converts fractional epoch seconds to ISO-8601.
func EpochSecondsToISO(sec float64) string {
	whole, frac := math.Modf(sec)
	return FormatTime(time.Unix(int64(whole), int64(math.Round(frac*1e3))*int64(time.Millisecond)))
}
