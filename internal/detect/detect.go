// Package detect flags anomalous rows of a proton flux table.
//
// Score runs two steps:
//   - Smooth: trailing rolling mean per channel, shrinking at the start
//   - an isolation forest fitted on the smoothed rows, thresholded so
//     that about Contamination of the rows fall below the cut
//
// Everything is deterministic for a given Seed.
package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

// Params configures Score.
type Params struct {
	Window        int     // rolling mean window, rows
	Contamination float64 // expected anomalous fraction, (0, 0.5]
	Seed          uint64  // forest randomness
	Trees         int     // forest size
	MaxSamples    int     // per-tree sub-sample cap
}

// DefaultParams returns the standard detection settings.
func DefaultParams() Params {
	return Params{
		Window:        5,
		Contamination: 0.01,
		Seed:          42,
		Trees:         100,
		MaxSamples:    256,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Window <= 0:
		return fmt.Errorf("%w: window %d must be positive", solar.ErrValue, p.Window)
	case !(p.Contamination > 0 && p.Contamination <= 0.5):
		return fmt.Errorf("%w: contamination %v outside (0, 0.5]", solar.ErrValue, p.Contamination)
	case p.Trees <= 0:
		return fmt.Errorf("%w: trees %d must be positive", solar.ErrValue, p.Trees)
	case p.MaxSamples <= 0:
		return fmt.Errorf("%w: max samples %d must be positive", solar.ErrValue, p.MaxSamples)
	}
	return nil
}

// Score smooths t and labels every row Normal or Anomalous.
func Score(t *solar.FluxTable, p Params) (*solar.ScoredTable, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkTable(t); err != nil {
		return nil, err
	}

	smoothed, err := Smooth(t, p.Window)
	if err != nil {
		return nil, err
	}

	points := smoothed.Points()
	forest, err := Fit(points, p.Trees, p.MaxSamples, p.Seed)
	if err != nil {
		return nil, err
	}
	scores := forest.ScoreSamples(points)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := Percentile(sorted, 100*p.Contamination)

	labels := make([]solar.Label, len(scores))
	for i, s := range scores {
		labels[i] = solar.Normal
		if s < threshold {
			labels[i] = solar.Anomalous
		}
	}
	return solar.NewScoredTable(smoothed, labels, scores, threshold)
}

func checkTable(t *solar.FluxTable) error {
	if t == nil || t.Rows() == 0 {
		return fmt.Errorf("%w: flux table has no rows", solar.ErrValue)
	}
	if t.Width() == 0 {
		return fmt.Errorf("%w: flux table has no channels", solar.ErrValue)
	}
	for _, ch := range t.Channels {
		for i, v := range ch.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s row %d is %v", solar.ErrValue, ch.Name, i, v)
			}
		}
	}
	return nil
}

// Percentile returns the q-th percentile (0..100) of sorted values with
// linear interpolation between closest ranks.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
