// Package gen writes random event files in the s t u p input format.
package gen

import "time"

// Config holds configuration for one generation run.
type Config struct {
	Output    string  // Output file; empty means events_TIMESTAMP.txt
	NumEvents int     // Number of events to write
	Seed      int64   // Base seed
	Param     float64 // Value written to the p column
	MinS      float64 // Lower bound of s
	MaxS      float64 // Upper bound of s
	Workers   int     // Number of generating goroutines
}

// Stats holds generation statistics.
type Stats struct {
	RunID           string
	Output          string
	EventsGenerated int
	BytesWritten    int64
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
