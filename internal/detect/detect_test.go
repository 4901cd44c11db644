package detect

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

var t0 = time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)

func mustTable(t *testing.T, cols ...[]float64) *solar.FluxTable {
	t.Helper()
	times := make([]time.Time, len(cols[0]))
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * time.Minute)
	}
	chans := make([]solar.Channel, len(cols))
	for j, c := range cols {
		chans[j] = solar.Channel{Index: j + 3, Name: solar.ChannelName(j + 3), Values: c}
	}
	tbl, err := solar.NewFluxTable(times, chans)
	if err != nil {
		t.Fatalf("NewFluxTable: %v", err)
	}
	return tbl
}

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// spikeTable is 100 rows of 10.0 with a single 10000.0 spike at row 50.
func spikeTable(t *testing.T) *solar.FluxTable {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = 10
	}
	vals[50] = 10000
	return mustTable(t, vals)
}

func gaussianTable(t *testing.T, rows, width int, seed uint64) *solar.FluxTable {
	r := rand.New(rand.NewPCG(seed, 1))
	cols := make([][]float64, width)
	for j := range cols {
		cols[j] = make([]float64, rows)
		for i := range cols[j] {
			cols[j][i] = 100 + 5*r.NormFloat64()
		}
	}
	return mustTable(t, cols...)
}

func TestSmooth(t *testing.T) {
	in := mustTable(t, []float64{1, 2, 3, 4, 5, 6, 7}, []float64{10, 0, 10, 0, 10, 0, 10})
	out, err := Smooth(in, 3)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	if out.Rows() != in.Rows() || out.Width() != in.Width() {
		t.Fatalf("shape %dx%d, want %dx%d", out.Rows(), out.Width(), in.Rows(), in.Width())
	}

	want := [][]float64{
		{1, 1.5, 2, 3, 4, 5, 6},
		{10, 5, 20.0 / 3, 10.0 / 3, 20.0 / 3, 10.0 / 3, 20.0 / 3},
	}
	for j := range want {
		for i, w := range want[j] {
			if got := out.Channels[j].Values[i]; !almostEqual(got, w, 1e-12) {
				t.Errorf("channel %d row %d = %v, want %v", j, i, got, w)
			}
		}
	}
	if in.Channels[0].Values[1] != 2 {
		t.Error("Smooth mutated its input")
	}
	if out.Channels[1].Name != "bin_4" || out.Channels[1].Index != 4 {
		t.Errorf("channel identity lost: %+v", out.Channels[1])
	}
}

func TestSmoothWindowProperties(t *testing.T) {
	tbl := gaussianTable(t, 200, 3, 7)
	for _, w := range []int{1, 2, 5, 17} {
		out, err := Smooth(tbl, w)
		if err != nil {
			t.Fatalf("Smooth(%d): %v", w, err)
		}
		for j, ch := range tbl.Channels {
			if out.Channels[j].Values[0] != ch.Values[0] {
				t.Errorf("w=%d: row 0 changed from %v to %v", w, ch.Values[0], out.Channels[j].Values[0])
			}
			for i := w - 1; i < len(ch.Values); i += 13 {
				var sum float64
				for _, v := range ch.Values[i-w+1 : i+1] {
					sum += v
				}
				if got := out.Channels[j].Values[i]; !almostEqual(got, sum/float64(w), 1e-9) {
					t.Errorf("w=%d row %d = %v, want %v", w, i, got, sum/float64(w))
				}
			}
		}
	}
	if _, err := Smooth(tbl, 0); !errors.Is(err, solar.ErrValue) {
		t.Errorf("window 0 error = %v, want ErrValue", err)
	}
}

func TestScoreSpike(t *testing.T) {
	p := DefaultParams()
	p.Contamination = 0.05
	st, err := Score(spikeTable(t), p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for i, l := range st.Labels {
		inWindow := i >= 50 && i <= 54
		if inWindow && l != solar.Anomalous {
			t.Errorf("row %d = %v, want anomalous", i, l)
		}
		if !inWindow && l != solar.Normal {
			t.Errorf("row %d = %v, want normal", i, l)
		}
	}
	if !(st.Scores[50] < st.Scores[10]) {
		t.Errorf("spike score %v not below baseline %v", st.Scores[50], st.Scores[10])
	}
	if got := st.Channels[0].Values[50]; got != 2008 {
		t.Errorf("smoothed spike = %v, want 2008", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	tbl := gaussianTable(t, 500, 5, 3)
	p := DefaultParams()
	a, err := Score(tbl, p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	b, err := Score(tbl, p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] || a.Scores[i] != b.Scores[i] {
			t.Fatalf("row %d differs between runs: %v/%v vs %v/%v", i, a.Labels[i], a.Scores[i], b.Labels[i], b.Scores[i])
		}
	}

	p.Seed = 7
	c, err := Score(tbl, p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	same := true
	for i := range a.Scores {
		if a.Scores[i] != c.Scores[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical scores")
	}
}

func TestScoreContaminationFraction(t *testing.T) {
	tbl := gaussianTable(t, 1000, 3, 11)
	for _, c := range []float64{0.01, 0.05, 0.1, 0.5} {
		p := DefaultParams()
		p.Contamination = c
		st, err := Score(tbl, p)
		if err != nil {
			t.Fatalf("Score(C=%v): %v", c, err)
		}
		frac := float64(st.AnomalyCount()) / float64(st.Rows())
		if math.Abs(frac-c) > 0.5*c {
			t.Errorf("C=%v flagged fraction %v", c, frac)
		}
	}
}

func TestScoreValidation(t *testing.T) {
	good := mustTable(t, []float64{1, 2, 3})
	empty, err := solar.NewFluxTable(nil, []solar.Channel{{Index: 0, Name: "bin_0"}})
	if err != nil {
		t.Fatal(err)
	}
	noChannels, err := solar.NewFluxTable([]time.Time{t0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	withNaN := mustTable(t, []float64{1, math.NaN(), 3})

	tests := []struct {
		name   string
		tbl    *solar.FluxTable
		mutate func(*Params)
	}{
		{"zero rows", empty, nil},
		{"zero channels", noChannels, nil},
		{"nil table", nil, nil},
		{"NaN value", withNaN, nil},
		{"contamination zero", good, func(p *Params) { p.Contamination = 0 }},
		{"contamination above half", good, func(p *Params) { p.Contamination = 0.51 }},
		{"window zero", good, func(p *Params) { p.Window = 0 }},
		{"window negative", good, func(p *Params) { p.Window = -3 }},
		{"no trees", good, func(p *Params) { p.Trees = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			if tc.mutate != nil {
				tc.mutate(&p)
			}
			if _, err := Score(tc.tbl, p); !errors.Is(err, solar.ErrValue) {
				t.Errorf("Score error = %v, want ErrValue", err)
			}
		})
	}

	p := DefaultParams()
	p.Contamination = 0.5
	if _, err := Score(good, p); err != nil {
		t.Errorf("contamination 0.5 rejected: %v", err)
	}
}

func TestPercentile(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		q, want float64
	}{
		{0, 1}, {100, 5}, {50, 3}, {10, 1.4}, {95, 4.8},
	}
	for _, tc := range tests {
		if got := Percentile(s, tc.q); !almostEqual(got, tc.want, 1e-12) {
			t.Errorf("Percentile(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}
	if !math.IsNaN(Percentile(nil, 50)) {
		t.Error("Percentile of empty slice should be NaN")
	}
}
