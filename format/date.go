package format

import (
	"math"
	"time"
)

const (
	secondsPerDay = 86400
	msPerDay      = secondsPerDay * 1000
)

var (
	epoch1900 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

	// first day after the phantom 1900-02-29 kept by the 1900 date system
	leapBug = time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)
)

// ToSerial converts t to a serial date number. Only the wall clock of t is
// used: the location is dropped.
func ToSerial(t time.Time, date1904 bool) float64 {
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	}
	ms := t.UnixMilli() - epoch.UnixMilli()
	serial := float64(ms) / msPerDay
	if !date1904 && t.Before(leapBug) {
		serial--
	}
	return serial
}

// FromSerial converts a serial date number to a time in UTC, rounded to the
// millisecond.
func FromSerial(serial float64, date1904 bool) time.Time {
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	} else if serial < 61 {
		serial++
	}
	ms := int64(math.Round(serial * msPerDay))
	return time.UnixMilli(epoch.UnixMilli() + ms).UTC()
}
