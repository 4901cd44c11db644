package common

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.OutputPath != "cme_detection.png" || c.PlotChannel != "bin_5" {
		t.Errorf("defaults = %q, %q", c.OutputPath, c.PlotChannel)
	}
	want := []int{3, 4, 5, 6, 7}
	if len(c.Channels) != len(want) {
		t.Fatalf("channels = %v, want %v", c.Channels, want)
	}
	for i := range want {
		if c.Channels[i] != want[i] {
			t.Errorf("channels = %v, want %v", c.Channels, want)
		}
	}
	if c.Window != 5 || c.Contamination != 0.01 || c.Seed != 42 {
		t.Errorf("model defaults = %d, %v, %d", c.Window, c.Contamination, c.Seed)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"svg output", func(c *Config) { c.OutputPath = "out/chart.SVG" }, false},
		{"no input", func(c *Config) { c.InputPath = "" }, true},
		{"no output", func(c *Config) { c.OutputPath = "" }, true},
		{"bad format", func(c *Config) { c.OutputPath = "chart.gif" }, true},
		{"no extension", func(c *Config) { c.OutputPath = "chart" }, true},
		{"no channels", func(c *Config) { c.Channels = nil }, true},
		{"no flux variable", func(c *Config) { c.FluxVariable = "" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			c.InputPath = "data.cdf"
			tc.mutate(c)
			if err := c.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := NewStats()
	s.Rows = 200
	s.Anomalies = 2
	s.Format = "cdf"

	done := s.Stage("Load")
	time.Sleep(2 * time.Millisecond)
	done()

	if d, ok := s.StageTime("Load"); !ok || d <= 0 {
		t.Errorf("StageTime(Load) = %v, %v", d, ok)
	}
	if _, ok := s.StageTime("Plot"); ok {
		t.Error("unrecorded stage reported")
	}
	if got := s.AnomalyRate(); got != 0.01 {
		t.Errorf("AnomalyRate = %v, want 0.01", got)
	}
	if (&Stats{}).AnomalyRate() != 0 {
		t.Error("AnomalyRate of empty stats should be 0")
	}

	var buf bytes.Buffer
	s.Print(log.New(&buf, "", 0))
	out := buf.String()
	for _, want := range []string{"Final Statistics", "Total Rows:   200", "Anomalies:    2 (1.00%)", "Load:"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}
