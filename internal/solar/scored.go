package solar

import (
	"fmt"
	"time"
)

// Label classifies a single row.
type Label int8

const (
	Normal    Label = 1
	Anomalous Label = -1
)

func (l Label) String() string {
	switch l {
	case Normal:
		return "normal"
	case Anomalous:
		return "anomalous"
	default:
		return fmt.Sprintf("Label(%d)", int8(l))
	}
}

// ScoredTable is a smoothed FluxTable with one label per row.
type ScoredTable struct {
	FluxTable

	Labels    []Label   // Normal or Anomalous, one per row
	Scores    []float64 // Anomaly score per row (lower = more anomalous)
	Threshold float64   // Rows scoring strictly below this are Anomalous
}

// NewScoredTable attaches labels and scores to t.
func NewScoredTable(t *FluxTable, labels []Label, scores []float64, threshold float64) (*ScoredTable, error) {
	if len(labels) != t.Rows() || len(scores) != t.Rows() {
		return nil, fmt.Errorf("%w: %d labels and %d scores for %d rows",
			ErrValue, len(labels), len(scores), t.Rows())
	}
	return &ScoredTable{
		FluxTable: *t,
		Labels:    labels,
		Scores:    scores,
		Threshold: threshold,
	}, nil
}

// AnomalyCount returns the number of rows labelled Anomalous.
func (s *ScoredTable) AnomalyCount() int {
	n := 0
	for _, l := range s.Labels {
		if l == Anomalous {
			n++
		}
	}
	return n
}

// Interval is a maximal run of consecutive anomalous rows.
type Interval struct {
	First, Last int       // Row indices, inclusive
	Start, End  time.Time // Times[First], Times[Last]
	Peak        float64   // Largest value of the channel inside the run
}

// Rows returns the number of rows covered by the interval.
func (iv Interval) Rows() int {
	return iv.Last - iv.First + 1
}

// Intervals groups consecutive anomalous rows. Peak is taken from the
// named channel.
func (s *ScoredTable) Intervals(channel string) ([]Interval, error) {
	ch, ok := s.Channel(channel)
	if !ok {
		return nil, fmt.Errorf("%w: channel %q not in table", ErrKey, channel)
	}

	var out []Interval
	open := false
	var cur Interval
	for i, l := range s.Labels {
		if l != Anomalous {
			if open {
				out = append(out, cur)
				open = false
			}
			continue
		}
		v := ch.Values[i]
		if !open {
			cur = Interval{First: i, Start: s.Times[i], Peak: v}
			open = true
		}
		cur.Last = i
		cur.End = s.Times[i]
		if v > cur.Peak {
			cur.Peak = v
		}
	}
	if open {
		out = append(out, cur)
	}
	return out, nil
}
