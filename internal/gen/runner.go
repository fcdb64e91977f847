package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/logger"
)

// Run generates the events and writes them to config.Output.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	log := logger.Get().Named("gen")
	log.Info(ctx, "starting event generation",
		logger.String("run_id", stats.RunID),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.Int64("seed", config.Seed),
		logger.Float64("param", config.Param),
	)

	evs, err := Generate(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("event generation failed: %w", err)
	}
	stats.EventsGenerated = len(evs)

	output := config.Output
	if output == "" {
		output = "events_" + time.Now().Format("20060102_150405") + ".txt"
	}
	stats.Output = output

	n, err := writeFile(ctx, output, evs)
	if err != nil {
		return nil, err
	}
	stats.BytesWritten = n

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "event file written",
		logger.String("run_id", stats.RunID),
		logger.String("output", output),
		logger.Int64("bytes", n),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func writeFile(ctx context.Context, path string, evs []model.Event) (int64, error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := Write(ctx, file, evs)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	return n, err
}
