// cme-detect - Isolation Forest CME candidate detection on PSP/ISOIS proton flux
//
// Loads the time axis and proton flux bins 3-7 from a CDF (or Parquet)
// file, smooths each bin with a trailing rolling mean, labels every
// timestamp with an Isolation Forest and plots bin_5 with the anomalous
// points marked.
//
// Supported inputs:
//   - NASA CDF v3 (.cdf), optionally gzipped (.cdf.gz)
//   - Parquet rows {epoch, flux} (.parquet, .parquet.gz)
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/cme-detect ./cmd/cme-detect

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/common"
	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/detect"
	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/present"
	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// maxListedIntervals caps the per-interval lines in the run log.
const maxListedIntervals = 10

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg := common.DefaultConfig()

	fs := flag.NewFlagSet("cme-detect", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Chart output path (png, svg, pdf, ...)")
	fs.IntVar(&cfg.Window, "window", cfg.Window, "Rolling mean window (rows)")
	fs.Float64Var(&cfg.Contamination, "contamination", cfg.Contamination, "Expected anomalous fraction, (0, 0.5]")
	fs.StringVar(&cfg.TimeVariable, "time-var", cfg.TimeVariable, "Time axis variable name")
	fs.StringVar(&cfg.FluxVariable, "flux-var", cfg.FluxVariable, "Proton flux variable name")

	fs.Usage = func() {
		fmt.Fprintf(stdout, "cme-detect v%s - Isolation Forest CME Detector\n\n", Version)
		fmt.Fprintf(stdout, "Usage: cme-detect [OPTIONS] <path_to_cdf_file>\n\n")
		fmt.Fprintf(stdout, "Flags proton flux anomalies in energy bins 3-7 and plots bin_5.\n\n")
		fmt.Fprintf(stdout, "Supported formats:\n")
		fmt.Fprintf(stdout, "  - NASA CDF v3 (.cdf, .cdf.gz)\n")
		fmt.Fprintf(stdout, "  - Parquet epoch/flux rows (.parquet, .parquet.gz)\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	cfg.InputPath = fs.Arg(0)

	logger := log.New(stdout, "", log.LstdFlags)
	if err := cfg.Validate(); err != nil {
		logger.Printf("Configuration error: %v", err)
		return 1
	}
	params := detect.Params{
		Window:        cfg.Window,
		Contamination: cfg.Contamination,
		Seed:          cfg.Seed,
		Trees:         cfg.Trees,
		MaxSamples:    cfg.MaxSamples,
	}
	if err := params.Validate(); err != nil {
		logger.Printf("Configuration error: %v", err)
		return 1
	}

	logger.Println("=========================================================")
	logger.Printf("CME Detect v%s", Version)
	logger.Println("=========================================================")

	stats := common.NewStats()

	logger.Printf("Loading data from %s...", cfg.InputPath)
	var ls solar.LoadStats
	done := stats.Stage("Load")
	table, err := solar.Load(cfg.InputPath, cfg.Channels,
		solar.WithTimeVariable(cfg.TimeVariable),
		solar.WithFluxVariable(cfg.FluxVariable),
		solar.WithStats(&ls),
	)
	done()
	if err != nil {
		logger.Printf("Load failed: %v", err)
		return 1
	}
	stats.BytesRead = ls.BytesRead
	stats.Format = ls.Format
	stats.Rows = table.Rows()
	stats.Channels = table.Width()
	logger.Printf("[Load] %d rows x %d channels (%d bins in file, %s)", table.Rows(), table.Width(), ls.Width, ls.Format)

	logger.Println("Detecting anomalies...")
	done = stats.Stage("Detect")
	scored, err := detect.Score(table, params)
	done()
	if err != nil {
		logger.Printf("Detection failed: %v", err)
		return 1
	}
	stats.Anomalies = scored.AnomalyCount()
	stats.Threshold = scored.Threshold

	intervals, err := scored.Intervals(cfg.PlotChannel)
	if err != nil {
		logger.Printf("Detection failed: %v", err)
		return 1
	}
	stats.Intervals = len(intervals)
	logIntervals(logger, cfg.PlotChannel, intervals)

	logger.Println("Plotting results...")
	done = stats.Stage("Plot")
	err = present.Save(scored, cfg.PlotChannel, cfg.OutputPath, present.DefaultOptions())
	done()
	if err != nil {
		logger.Printf("Plot failed: %v", err)
		return 1
	}
	logger.Printf("[Plot] Chart written to %s", cfg.OutputPath)

	stats.Print(logger)
	return 0
}

func logIntervals(logger *log.Logger, channel string, ivs []solar.Interval) {
	for i, iv := range ivs {
		if i == maxListedIntervals {
			logger.Printf("[Anomaly] ... %d more interval(s)", len(ivs)-i)
			return
		}
		logger.Printf("[Anomaly] %s -> %s  %d row(s), peak %s %.3f",
			iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339), iv.Rows(), channel, iv.Peak)
	}
}
