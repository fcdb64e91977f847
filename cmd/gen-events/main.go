package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/okian/amplike/internal/gen"
	"github.com/okian/amplike/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents = 10000
	defaultSeed      = 42
	defaultParam     = 30.0
	defaultMinS      = 1.0
	defaultMaxS      = 100.0
)

func main() {
	var (
		output    = flag.String("output", "", "Output file (default: events_TIMESTAMP.txt)")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate")
		seed      = flag.Int64("seed", defaultSeed, "Base seed")
		param     = flag.Float64("param", defaultParam, "Value of the p column")
		minS      = flag.Float64("min-s", defaultMinS, "Lower bound of s")
		maxS      = flag.Float64("max-s", defaultMaxS, "Upper bound of s")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of generating goroutines")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		gen.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &gen.Config{
		Output:    *output,
		NumEvents: *numEvents,
		Seed:      *seed,
		Param:     *param,
		MinS:      *minS,
		MaxS:      *maxS,
		Workers:   *workers,
	}

	stats, err := gen.Run(ctx, config)
	if err != nil {
		_, _ = os.Stderr.WriteString("error: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
	_, _ = os.Stdout.WriteString(stats.Output + "\n")
}
