package solar

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// Default variable names for the PSP/ISOIS EPI-Lo proton flux product.
const (
	DefaultTimeVariable = "Epoch"
	DefaultFluxVariable = "PS_Inner_allspecies"
)

// Decoded is the raw output of a container decoder.
type Decoded struct {
	Times []time.Time
	Flux  []float64 // row-major [observation][channel]
	Width int       // channels per observation
}

// Decoder turns a container image into a time axis and a flux matrix.
type Decoder interface {
	Decode(data []byte, timeVar, fluxVar string) (*Decoded, error)
	Name() string
}

// LoadOption tunes Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	timeVar string
	fluxVar string
	stats   *LoadStats
}

// WithTimeVariable selects the time-axis variable.
func WithTimeVariable(name string) LoadOption {
	return func(c *loadConfig) { c.timeVar = name }
}

// WithFluxVariable selects the 2-D flux variable.
func WithFluxVariable(name string) LoadOption {
	return func(c *loadConfig) { c.fluxVar = name }
}

// WithStats records what Load read into s.
func WithStats(s *LoadStats) LoadOption {
	return func(c *loadConfig) { c.stats = s }
}

// LoadStats reports the size and shape of the decoded input.
type LoadStats struct {
	BytesRead int64
	Format    string
	Width     int // flux channels available in the file
}

// decoderFor picks a decoder from the file extension. A trailing .gz is
// peeled off first and reported through gz.
func decoderFor(path string) (d Decoder, gz bool, err error) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		gz = true
		name = strings.TrimSuffix(name, ".gz")
	}
	switch filepath.Ext(name) {
	case ".cdf":
		return CDFDecoder{}, gz, nil
	case ".parquet":
		return ParquetDecoder{}, gz, nil
	default:
		return nil, gz, fmt.Errorf("%w: %s: unknown file format", ErrFile, filepath.Base(path))
	}
}

// Load decodes path into a FluxTable holding the requested channels,
// named bin_<index>, in request order.
func Load(path string, channels []int, opts ...LoadOption) (*FluxTable, error) {
	cfg := loadConfig{timeVar: DefaultTimeVariable, fluxVar: DefaultFluxVariable}
	for _, o := range opts {
		o(&cfg)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels requested", ErrValue)
	}

	dec, gz, err := decoderFor(path)
	if err != nil {
		return nil, err
	}
	data, err := readInput(path, gz)
	if err != nil {
		return nil, err
	}

	raw, err := dec.Decode(data, cfg.timeVar, cfg.fluxVar)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFile, filepath.Base(path), err)
	}
	if cfg.stats != nil {
		cfg.stats.BytesRead = int64(len(data))
		cfg.stats.Format = dec.Name()
		cfg.stats.Width = raw.Width
	}
	return buildTable(raw, channels)
}

func readInput(path string, gz bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFile, err)
	}
	defer f.Close()

	var r io.Reader = f
	if gz {
		zr, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFile, filepath.Base(path), err)
		}
		defer zr.Close()
		r = zr
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %s: read: %w", ErrFile, filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}

// buildTable validates the decoded matrix and slices out channels.
func buildTable(raw *Decoded, channels []int) (*FluxTable, error) {
	rows := len(raw.Times)
	if raw.Width < 0 || (rows > 0 && raw.Width == 0) {
		return nil, fmt.Errorf("%w: flux variable has width %d", ErrFile, raw.Width)
	}
	if raw.Width > 0 && len(raw.Flux)%raw.Width != 0 {
		return nil, fmt.Errorf("%w: flux matrix of %d values is not a multiple of width %d",
			ErrFile, len(raw.Flux), raw.Width)
	}
	fluxRows := 0
	if raw.Width > 0 {
		fluxRows = len(raw.Flux) / raw.Width
	}
	if fluxRows != rows {
		return nil, fmt.Errorf("%w: time axis has %d records, flux has %d", ErrFile, rows, fluxRows)
	}
	for _, idx := range channels {
		if idx < 0 || idx >= raw.Width {
			return nil, fmt.Errorf("%w: channel %d outside flux width %d", ErrIndex, idx, raw.Width)
		}
	}

	cols := make([]Channel, len(channels))
	for j, idx := range channels {
		vals := make([]float64, rows)
		for i := 0; i < rows; i++ {
			vals[i] = raw.Flux[i*raw.Width+idx]
		}
		cols[j] = Channel{Index: idx, Name: ChannelName(idx), Values: vals}
	}
	return NewFluxTable(raw.Times, cols)
}
