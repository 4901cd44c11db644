package cdf

import (
	"errors"
	"testing"
	"time"
)

func TestTT2000Time(t *testing.T) {
	tests := []struct {
		name string
		tt   int64
		want time.Time
	}{
		{"J2000", 0, time.Date(2000, 1, 1, 11, 58, 55, 816_000_000, time.UTC)},
		{"2017 leap second boundary", 536500869184000000, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"second before 2016 leap", 536500867184000000, time.Date(2016, 12, 31, 23, 59, 59, 0, time.UTC)},
		{"fill", tt2000Fill, time.Time{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TT2000Time(tc.tt); !got.Equal(tc.want) {
				t.Errorf("TT2000Time(%d) = %v, want %v", tc.tt, got, tc.want)
			}
		})
	}
}

func TestTT2000RoundTrip(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(1985, 3, 4, 5, 6, 7, 0, time.UTC),
		time.Date(2012, 6, 30, 23, 59, 59, 0, time.UTC),
		time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 10, 28, 15, 35, 0, 123_000_000, time.UTC),
	} {
		if got := TT2000Time(TimeTT2000(ts)); !got.Equal(ts) {
			t.Errorf("round trip of %v gave %v", ts, got)
		}
	}
}

func TestEpochTime(t *testing.T) {
	// 2000-01-01T00:00:00 is 63113904000000 ms after year 0.
	want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := EpochTime(63113904000000); !got.Equal(want) {
		t.Errorf("EpochTime = %v, want %v", got, want)
	}
	ts := time.Date(2022, 2, 15, 8, 30, 12, 250_000_000, time.UTC)
	if got := EpochTime(TimeEpoch(ts)); !got.Equal(ts) {
		t.Errorf("round trip of %v gave %v", ts, got)
	}
	if got := EpochTime(epochFill); !got.IsZero() {
		t.Errorf("fill value gave %v, want zero time", got)
	}
}

func TestEpoch16Time(t *testing.T) {
	want := time.Date(2000, 1, 1, 0, 0, 1, 500, time.UTC)
	if got := Epoch16Time(63113904001, 500_000); !got.Equal(want) {
		t.Errorf("Epoch16Time = %v, want %v", got, want)
	}
}

func TestColumnToRow(t *testing.T) {
	// 2x3 record stored column-major: a[0][0] a[1][0] a[0][1] a[1][1] a[0][2] a[1][2]
	rec := []float64{0, 10, 1, 11, 2, 12}
	columnToRow(rec, []int{2, 3})
	want := []float64{0, 1, 2, 10, 11, 12}
	for i := range want {
		if rec[i] != want[i] {
			t.Fatalf("columnToRow = %v, want %v", rec, want)
		}
	}
}

func TestUnRLE(t *testing.T) {
	got, err := unRLE([]byte{7, 0, 2, 9, 0, 0}, 64)
	if err != nil {
		t.Fatalf("unRLE: %v", err)
	}
	want := []byte{7, 0, 0, 0, 9, 0}
	if string(got) != string(want) {
		t.Errorf("unRLE = %v, want %v", got, want)
	}
	if _, err := unRLE([]byte{1, 0}, 64); err == nil {
		t.Error("expected error for dangling run marker")
	}
	if _, err := unRLE([]byte{0, 255, 0, 255}, 300); !errors.Is(err, ErrFormat) {
		t.Errorf("run past limit error = %v, want ErrFormat", err)
	}
	if _, err := unRLE([]byte{1, 2, 3}, 2); !errors.Is(err, ErrFormat) {
		t.Errorf("literal past limit error = %v, want ErrFormat", err)
	}
}
