package solar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/cdf"
)

// CDFDecoder reads NASA CDF v3 files.
type CDFDecoder struct{}

func (CDFDecoder) Name() string { return "cdf" }

// Decode converts the time variable to UTC and flattens the flux
// variable. The flux variable must have exactly one varying dimension.
func (CDFDecoder) Decode(data []byte, timeVar, fluxVar string) (*Decoded, error) {
	f, err := cdf.Parse(data)
	if err != nil {
		return nil, err
	}
	times, err := f.Times(timeVar)
	if err != nil {
		return nil, err
	}
	v, err := f.Variable(fluxVar)
	if err != nil {
		return nil, err
	}
	if shape := v.Shape(); len(shape) != 1 {
		return nil, fmt.Errorf("%w: flux variable %q has record shape %v, want one channel axis",
			cdf.ErrFormat, fluxVar, shape)
	}
	flux, width, err := f.Float64s(fluxVar)
	if err != nil {
		return nil, err
	}
	return &Decoded{Times: times, Flux: flux, Width: width}, nil
}

// ParquetRow is one observation in the Parquet flux layout.
type ParquetRow struct {
	Epoch int64     `parquet:"epoch"` // Unix nanoseconds, UTC
	Flux  []float64 `parquet:"flux"`  // one value per channel
}

// ParquetDecoder reads flux tables exported as Parquet with the
// ParquetRow schema. Column names are fixed; variable names are ignored.
type ParquetDecoder struct{}

func (ParquetDecoder) Name() string { return "parquet" }

func (ParquetDecoder) Decode(data []byte, _, _ string) (*Decoded, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}

	reader := parquet.NewGenericReader[ParquetRow](pf)
	defer reader.Close()

	out := &Decoded{Width: -1}
	rows := make([]ParquetRow, 1000)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			r := rows[i]
			if out.Width < 0 {
				out.Width = len(r.Flux)
			}
			if len(r.Flux) != out.Width {
				return nil, fmt.Errorf("row %d has %d channels, want %d", len(out.Times), len(r.Flux), out.Width)
			}
			out.Times = append(out.Times, time.Unix(0, r.Epoch).UTC())
			out.Flux = append(out.Flux, r.Flux...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parquet read: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if out.Width < 0 {
		out.Width = 0
	}
	return out, nil
}
