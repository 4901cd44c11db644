package cdf

import (
	"math"
	"sort"
	"time"
)

// Seconds between 0000-01-01T00:00:00 and the Unix epoch.
const year0ToUnix = 62167219200

// Fill values written by the CDF library for missing times.
const (
	epochFill  = -1.0e31
	tt2000Fill = math.MinInt64
)

// j2000 is 2000-01-01T12:00:00 TT expressed in UTC.
var j2000 = time.Date(2000, 1, 1, 11, 58, 55, 816_000_000, time.UTC)

// leapSeconds lists TAI-UTC from each effective date.
var leapSeconds = []struct {
	year  int
	month time.Month
	dat   int64
}{
	{1972, time.January, 10}, {1972, time.July, 11}, {1973, time.January, 12},
	{1974, time.January, 13}, {1975, time.January, 14}, {1976, time.January, 15},
	{1977, time.January, 16}, {1978, time.January, 17}, {1979, time.January, 18},
	{1980, time.January, 19}, {1981, time.July, 20}, {1982, time.July, 21},
	{1983, time.July, 22}, {1985, time.July, 23}, {1988, time.January, 24},
	{1990, time.January, 25}, {1991, time.January, 26}, {1992, time.July, 27},
	{1993, time.July, 28}, {1994, time.July, 29}, {1996, time.January, 30},
	{1997, time.July, 31}, {1999, time.January, 32}, {2006, time.January, 33},
	{2009, time.January, 34}, {2012, time.July, 35}, {2015, time.July, 36},
	{2017, time.January, 37},
}

// leapTT holds the TT2000 value at which each leapSeconds entry takes effect.
var leapTT = func() []int64 {
	tt := make([]int64, len(leapSeconds))
	for i, ls := range leapSeconds {
		utc := time.Date(ls.year, ls.month, 1, 0, 0, 0, 0, time.UTC)
		tt[i] = int64(utc.Sub(j2000)) + (ls.dat-32)*int64(time.Second)
	}
	return tt
}()

// EpochTime converts CDF_EPOCH milliseconds since 0000-01-01 to UTC.
// The fill value maps to the zero time.
func EpochTime(ms float64) time.Time {
	if ms <= epochFill || math.IsNaN(ms) {
		return time.Time{}
	}
	unixMs := ms - year0ToUnix*1000
	whole := math.Floor(unixMs)
	frac := math.Round((unixMs - whole) * 1e6)
	return time.UnixMilli(int64(whole)).Add(time.Duration(frac)).UTC()
}

// Epoch16Time converts a CDF_EPOCH16 (seconds since 0000-01-01,
// picoseconds) pair to UTC. Sub-nanosecond precision is dropped.
func Epoch16Time(sec, psec float64) time.Time {
	if sec <= epochFill || math.IsNaN(sec) {
		return time.Time{}
	}
	return time.Unix(int64(sec)-year0ToUnix, int64(psec/1000)).UTC()
}

// TT2000Time converts CDF_TIME_TT2000 nanoseconds since J2000 (TT, leap
// seconds included) to UTC. A leap second itself maps onto the following
// second. Times before 1972 use the 1972 offset.
func TT2000Time(tt int64) time.Time {
	if tt == tt2000Fill {
		return time.Time{}
	}
	i := sort.Search(len(leapTT), func(i int) bool { return leapTT[i] > tt }) - 1
	dat := leapSeconds[max(i, 0)].dat
	return j2000.Add(time.Duration(tt - (dat-32)*int64(time.Second)))
}

// TimeTT2000 is the inverse of TT2000Time for instants after 1972.
func TimeTT2000(t time.Time) int64 {
	d := int64(t.UTC().Sub(j2000))
	i := sort.Search(len(leapSeconds), func(i int) bool {
		ls := leapSeconds[i]
		return t.Before(time.Date(ls.year, ls.month, 1, 0, 0, 0, 0, time.UTC))
	}) - 1
	dat := leapSeconds[max(i, 0)].dat
	return d + (dat-32)*int64(time.Second)
}

// TimeEpoch is the inverse of EpochTime.
func TimeEpoch(t time.Time) float64 {
	return float64(t.UnixNano())/1e6 + year0ToUnix*1000
}
