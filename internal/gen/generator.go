package gen

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/logger"
)

// ErrInvalidCount is returned for a non-positive number of events.
var ErrInvalidCount = errors.New("number of events must be positive")

// Generate draws config.NumEvents events. Events are produced in chunks of
// chunkSize, chunk c seeded with Seed + c*chunkSeedStride, and the chunks are
// spread over config.Workers goroutines.
func Generate(ctx context.Context, config *Config) ([]model.Event, error) {
	if config.NumEvents < 1 {
		return nil, ErrInvalidCount
	}
	logger.Get().Info(ctx, "generating events", logger.Int("numEvents", config.NumEvents))

	out := make([]model.Event, config.NumEvents)
	chunks := (config.NumEvents + chunkSize - 1) / chunkSize

	type chunkResult struct {
		index int
		err   error
	}
	resultChan := make(chan chunkResult, chunks)

	workerCount := max(1, min(config.Workers, chunks))
	chunksPerWorker := chunks / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * chunksPerWorker
		end := start + chunksPerWorker
		if worker == workerCount-1 {
			end = chunks // Last worker gets remaining chunks
		}

		go func(start, end int) {
			for c := start; c < end; c++ {
				select {
				case <-ctx.Done():
					resultChan <- chunkResult{index: c, err: ctx.Err()}
				default:
					fillChunk(config, c, out)
					resultChan <- chunkResult{index: c}
				}
			}
		}(start, end)
	}

	for i := 0; i < chunks; i++ {
		result := <-resultChan
		if result.err != nil {
			return nil, fmt.Errorf("generate chunk %d: %w", result.index, result.err)
		}
	}

	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(out)))
	return out, nil
}

// fillChunk writes chunk c of out.
func fillChunk(config *Config, c int, out []model.Event) {
	opts := []events.RandomOption{
		events.WithSeed(config.Seed + int64(c)*chunkSeedStride),
		events.WithParam(config.Param),
	}
	if config.MaxS > config.MinS {
		opts = append(opts, events.WithSRange(config.MinS, config.MaxS))
	}
	src := events.NewRandomSource(opts...)

	lo := c * chunkSize
	hi := min(lo+chunkSize, len(out))
	for i := lo; i < hi; i++ {
		out[i], _ = src.Next()
	}
}
