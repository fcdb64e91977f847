package gen

import "os"

// ShowHelp prints usage information for the gen-events tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`amplike event generator
=======================

Writes a plain-text event file, one "s t u p" record per line, that the
amplike command reads with -input.

Usage:
  go run ./cmd/gen-events [options]

Options:
  -output string
        Output file (default: events_TIMESTAMP.txt)
  -events int
        Number of events to generate (default 10000)
  -seed int
        Base seed; the same seed always yields the same file (default 42)
  -param float
        Value of the p column (default 30)
  -min-s float, -max-s float
        Range of s (default [1, 100))
  -workers int
        Number of generating goroutines (default CPU cores)
  -help
        Show this help message

Examples:
  go run ./cmd/gen-events -events 1000000 -output events.txt
  go run ./cmd -input events.txt -events 1000000 -context offload
`)
}
