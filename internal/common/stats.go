package common

import (
	"log"
	"time"
)

// Stats holds counters and stage timings for one run
type Stats struct {
	BytesRead int64
	Format    string
	Rows      int
	Channels  int
	Anomalies int
	Intervals int
	Threshold float64

	startTime time.Time
	stages    []stageTime
}

type stageTime struct {
	name    string
	elapsed time.Duration
}

// NewStats creates a new Stats instance with the clock started
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Stage starts timing a named stage; call the returned func when it ends
func (s *Stats) Stage(name string) func() {
	start := time.Now()
	return func() {
		s.stages = append(s.stages, stageTime{name: name, elapsed: time.Since(start)})
	}
}

// StageTime returns the recorded duration of a stage
func (s *Stats) StageTime(name string) (time.Duration, bool) {
	for _, st := range s.stages {
		if st.name == name {
			return st.elapsed, true
		}
	}
	return 0, false
}

// AnomalyRate returns the fraction of rows flagged anomalous
func (s *Stats) AnomalyRate() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Anomalies) / float64(s.Rows)
}

// Elapsed returns the time since NewStats
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// Print writes the Final Statistics banner
func (s *Stats) Print(logger *log.Logger) {
	logger.Println()
	logger.Println("=========================================================")
	logger.Println("Final Statistics")
	logger.Println("=========================================================")
	logger.Printf("Input:        %.2f MB (%s)", float64(s.BytesRead)/1024/1024, s.Format)
	logger.Printf("Total Rows:   %d", s.Rows)
	logger.Printf("Channels:     %d", s.Channels)
	logger.Printf("Anomalies:    %d (%.2f%%) in %d interval(s)", s.Anomalies, 100*s.AnomalyRate(), s.Intervals)
	logger.Printf("Threshold:    %.4f", s.Threshold)
	for _, st := range s.stages {
		logger.Printf("%-13s %v", st.name+":", st.elapsed.Round(time.Millisecond))
	}
	logger.Printf("Elapsed:      %v", s.Elapsed().Round(time.Millisecond))
	logger.Println("=========================================================")
}
