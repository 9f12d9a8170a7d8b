package utils

import "time"

// ISOLayout is the as_of layout: ISO-8601, UTC, microsecond precision, no zone suffix.
const ISOLayout = "2006-01-02T15:04:05.000000"

// ISOTimestamp formats t in UTC using ISOLayout.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// NowISO returns the current UTC time formatted with ISOLayout.
func NowISO() string {
	return ISOTimestamp(time.Now())
}
