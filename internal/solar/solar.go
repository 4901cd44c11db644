// Package solar provides proton flux table types and loaders.
// This package decodes spacecraft particle-instrument files into
// time-indexed flux tables and carries the scored result downstream
// to the presenter.
package solar

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Every failure in the pipeline wraps exactly one of these.
var (
	ErrFile  = errors.New("file error")  // missing, corrupt or undecodable input
	ErrIndex = errors.New("index error") // channel index out of range
	ErrValue = errors.New("value error") // invalid numeric parameter or empty data
	ErrKey   = errors.New("key error")   // unknown channel name
)

// ChannelName returns the generated column name for an instrument channel index.
func ChannelName(index int) string {
	return fmt.Sprintf("bin_%d", index)
}

// Channel is one energy bin column of a FluxTable.
type Channel struct {
	Index  int       // Position on the instrument's channel axis
	Name   string    // Generated name (bin_<Index>)
	Values []float64 // One value per timestamp
}

// FluxTable is a time-indexed table of per-channel flux values.
// Treat it as immutable once built; derived steps return new tables.
type FluxTable struct {
	Times    []time.Time
	Channels []Channel
}

// NewFluxTable validates that all channels align with times and
// that channel names are unique.
func NewFluxTable(times []time.Time, channels []Channel) (*FluxTable, error) {
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if len(ch.Values) != len(times) {
			return nil, fmt.Errorf("%w: channel %s has %d values, want %d",
				ErrValue, ch.Name, len(ch.Values), len(times))
		}
		if _, dup := seen[ch.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %s", ErrValue, ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	return &FluxTable{Times: times, Channels: channels}, nil
}

// Rows returns the number of observations.
func (t *FluxTable) Rows() int {
	return len(t.Times)
}

// Width returns the number of channels.
func (t *FluxTable) Width() int {
	return len(t.Channels)
}

// Channel looks up a column by name.
func (t *FluxTable) Channel(name string) (Channel, bool) {
	for _, ch := range t.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// Row returns observation i as a point with one coordinate per channel.
func (t *FluxTable) Row(i int) []float64 {
	p := make([]float64, len(t.Channels))
	for j, ch := range t.Channels {
		p[j] = ch.Values[i]
	}
	return p
}

// Points returns every row as a point, in time order.
func (t *FluxTable) Points() [][]float64 {
	pts := make([][]float64, t.Rows())
	for i := range pts {
		pts[i] = t.Row(i)
	}
	return pts
}

// Indices returns the instrument channel indices, in column order.
func (t *FluxTable) Indices() []int {
	idx := make([]int, len(t.Channels))
	for i, ch := range t.Channels {
		idx[i] = ch.Index
	}
	return idx
}
