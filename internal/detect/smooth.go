package detect

import (
	"fmt"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

// Smooth returns a new table where each value is the mean of the last
// window rows of its channel, ending at that row. The first window-1
// rows average over however many rows exist.
func Smooth(t *solar.FluxTable, window int) (*solar.FluxTable, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window %d must be positive", solar.ErrValue, window)
	}

	cols := make([]solar.Channel, len(t.Channels))
	for j, ch := range t.Channels {
		out := make([]float64, len(ch.Values))
		for i := range ch.Values {
			start := max(0, i-window+1)
			var sum float64
			for _, v := range ch.Values[start : i+1] {
				sum += v
			}
			out[i] = sum / float64(i-start+1)
		}
		cols[j] = solar.Channel{Index: ch.Index, Name: ch.Name, Values: out}
	}

	times := append(t.Times[:0:0], t.Times...)
	return solar.NewFluxTable(times, cols)
}
