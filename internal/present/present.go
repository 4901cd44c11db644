// Package present renders scored flux tables as charts.
package present

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

var (
	fluxColor    = color.RGBA{B: 255, A: 255}
	anomalyColor = color.RGBA{R: 255, A: 255}
)

// Options controls chart layout. Zero fields take defaults.
type Options struct {
	Title      string
	Width      vg.Length
	Height     vg.Length
	TimeFormat string
}

// DefaultOptions returns a 14x6 inch canvas with date/time ticks.
func DefaultOptions() Options {
	return Options{
		Width:      14 * vg.Inch,
		Height:     6 * vg.Inch,
		TimeFormat: "2006-01-02\n15:04",
	}
}

func (o Options) withDefaults(st *solar.ScoredTable) Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.TimeFormat == "" {
		o.TimeFormat = d.TimeFormat
	}
	if o.Title == "" {
		o.Title = Title(st.Indices())
	}
	return o
}

// Title names the chart after the channels the model saw.
func Title(indices []int) string {
	return fmt.Sprintf("Multivariate CME Detection (Isolation Forest, %s)", binRange(indices))
}

func binRange(indices []int) string {
	if len(indices) == 0 {
		return "No Bins"
	}
	if len(indices) == 1 {
		return fmt.Sprintf("Bin %d", indices[0])
	}
	contiguous := true
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous {
		return fmt.Sprintf("Bins %d–%d", indices[0], indices[len(indices)-1])
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprint(idx)
	}
	return "Bins " + strings.Join(parts, ", ")
}

// Chart builds the plot of one channel with anomalous rows marked.
// st is not modified.
func Chart(st *solar.ScoredTable, channel string, opts Options) (*plot.Plot, error) {
	ch, ok := st.Channel(channel)
	if !ok {
		return nil, fmt.Errorf("%w: channel %q not in table", solar.ErrKey, channel)
	}
	opts = opts.withDefaults(st)

	series := make(plotter.XYs, st.Rows())
	var anomalies plotter.XYs
	for i, ts := range st.Times {
		series[i].X = float64(ts.UnixNano()) / 1e9
		series[i].Y = ch.Values[i]
		if st.Labels[i] == solar.Anomalous {
			anomalies = append(anomalies, series[i])
		}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Flux"
	p.X.Tick.Marker = plot.TimeTicks{Format: opts.TimeFormat}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(series)
	if err != nil {
		return nil, fmt.Errorf("flux line: %w", err)
	}
	line.LineStyle.Color = fluxColor
	line.LineStyle.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("Flux (%s)", channel), line)

	if len(anomalies) > 0 {
		sc, err := plotter.NewScatter(anomalies)
		if err != nil {
			return nil, fmt.Errorf("anomaly markers: %w", err)
		}
		sc.GlyphStyle.Color = anomalyColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("Anomalies", sc)
	}
	return p, nil
}

// Render writes the chart to w in format ("png", "svg", "pdf", ...).
func Render(st *solar.ScoredTable, channel string, w io.Writer, format string, opts Options) error {
	p, err := Chart(st, channel, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults(st)
	wt, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// Save writes the chart to path; the format follows the extension.
func Save(st *solar.ScoredTable, channel, path string, opts Options) error {
	p, err := Chart(st, channel, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults(st)
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}
