// Package common provides shared configuration and run statistics for
// the cme-detect tools.
package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KI7MT/ki7mt-ai-lab-cme/internal/solar"
)

// Config holds the settings for one detection run.
type Config struct {
	InputPath    string
	OutputPath   string
	Channels     []int  // flux bins fed to the model, in order
	PlotChannel  string // channel drawn on the chart
	TimeVariable string
	FluxVariable string

	Window        int
	Contamination float64
	Seed          uint64
	Trees         int
	MaxSamples    int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputPath:    "cme_detection.png",
		Channels:      []int{3, 4, 5, 6, 7},
		PlotChannel:   "bin_5",
		TimeVariable:  solar.DefaultTimeVariable,
		FluxVariable:  solar.DefaultFluxVariable,
		Window:        5,
		Contamination: 0.01,
		Seed:          42,
		Trees:         100,
		MaxSamples:    256,
	}
}

// chartFormats are the output extensions the chart renderer can write.
var chartFormats = map[string]bool{
	"png": true, "svg": true, "pdf": true, "eps": true,
	"jpg": true, "jpeg": true, "tif": true, "tiff": true,
}

// ChartFormat returns the lower-cased extension of OutputPath.
func (c *Config) ChartFormat() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(c.OutputPath), "."))
}

// Validate checks the settings that can be rejected before any file is read.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("no input file")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("no output path")
	}
	if f := c.ChartFormat(); !chartFormats[f] {
		return fmt.Errorf("unsupported chart format %q", f)
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("no channels selected")
	}
	if c.TimeVariable == "" || c.FluxVariable == "" {
		return fmt.Errorf("time and flux variable names are required")
	}
	return nil
}
