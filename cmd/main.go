package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/okian/amplike/internal/adapters/exec"
	"github.com/okian/amplike/internal/adapters/mq/queue"
	service "github.com/okian/amplike/internal/app"
	"github.com/okian/amplike/internal/config"
	"github.com/okian/amplike/internal/domain/amplitude"
	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/logger"
	"github.com/okian/amplike/pkg/metrics"
)

// defaultRandomParam is the p column of generated events when no param is
// configured.
const defaultRandomParam = 30.0

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// flags holds the command line; only flags given explicitly override the
// loaded configuration.
type flags struct {
	configPath     string
	input          string
	events         int
	threads        int
	context        string
	offloadThreads int
	model          string
	param          float64
	policy         string
	blockSize      int
	seed           int64
	metricsFile    string
	logLevel       string
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("amplike", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.input, "input", "", "event file of 's t u p' records (default: generated events)")
	fs.IntVar(&f.events, "events", config.DefaultEvents, "number of events to load")
	fs.IntVar(&f.threads, "threads", 0, "host threads (default: one per CPU)")
	fs.StringVar(&f.context, "context", "host", "execution context: host or offload")
	fs.IntVar(&f.offloadThreads, "offload-threads", 0, "offload region threads (default 240)")
	fs.StringVar(&f.model, "model", config.DefaultModel, fmt.Sprintf("amplitude model %v", amplitude.Names()))
	fs.Float64Var(&f.param, "param", 0, "model parameter p (default: p of the first record)")
	fs.StringVar(&f.policy, "policy", "fail", "zero amplitude policy: fail or exclude")
	fs.IntVar(&f.blockSize, "block-size", likelihood.DefaultBlockSize, "events per reduction block")
	fs.Int64Var(&f.seed, "seed", config.DefaultSeed, "seed for generated events")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write metrics in Prometheus text format to this file")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// apply copies the explicitly set flags onto cfg.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input":
			cfg.Input = f.input
		case "events":
			cfg.Events = f.events
		case "threads":
			cfg.Threads = f.threads
		case "context":
			cfg.Context = f.context
		case "offload-threads":
			cfg.OffloadThreads = f.offloadThreads
		case "model":
			cfg.Model = f.model
		case "param":
			p := f.param
			cfg.Param = &p
		case "policy":
			cfg.Policy = f.policy
		case "block-size":
			cfg.BlockSize = f.blockSize
		case "seed":
			cfg.Seed = f.seed
		case "metrics-file":
			cfg.MetricsFile = f.metricsFile
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Initialize logging
	if err := logger.Init(logger.WithWriter(stderr)); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return 1
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env -> flags)
	cfg, err := config.Load(ctx, f.configPath)
	if err == nil {
		f.apply(fs, cfg)
		err = cfg.Validate()
	}
	if err != nil {
		return fail(ctx, stderr, err)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	res, err := compute(ctx, cfg)

	updateSystemMetrics()
	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn(ctx, "failed to write metrics file", logger.String("path", cfg.MetricsFile), logger.Error(werr))
		}
	}
	if err != nil {
		return fail(ctx, stderr, err)
	}

	fmt.Fprintf(stdout, "likelihood=%.17g events=%d excluded=%d context=%s threads=%d elapsed=%s throughput=%.0f\n",
		res.Value, res.Events, len(res.Excluded), res.Context, res.Threads, res.Elapsed, res.Throughput())
	return 0
}

// compute loads the events and runs one likelihood computation.
func compute(ctx context.Context, cfg *config.Config) (service.Result, error) {
	log := logger.Get().Named("amplike")

	var src events.Source
	if cfg.Input != "" {
		fsrc, err := events.OpenFile(cfg.Input)
		if err != nil {
			return service.Result{}, err
		}
		defer func() { _ = fsrc.Close() }()
		src = fsrc
	} else {
		p := defaultRandomParam
		if cfg.Param != nil {
			p = *cfg.Param
		}
		src = events.NewRandomSource(events.WithSeed(cfg.Seed), events.WithParam(p))
	}

	store := events.New(events.WithCapacity(cfg.MaxEvents))
	n, err := store.Load(ctx, src, cfg.Events)
	if err != nil {
		return service.Result{}, err
	}
	log.Info(ctx, "events loaded", logger.Int("events", n), logger.String("input", cfg.Input))

	params := model.Params{P: store.At(0).P}
	if cfg.Param != nil {
		params.P = *cfg.Param
	} else if i, ok := firstVaryingP(store.Columns()); ok {
		log.Warn(ctx, "p column is not constant; using the first record's value",
			logger.Float64("p", params.P), logger.Int("record", i), logger.Float64("record_p", store.At(i).P))
	}

	amp, err := amplitude.New(cfg.Model)
	if err != nil {
		return service.Result{}, err
	}
	policy, err := likelihood.ParsePolicy(cfg.Policy)
	if err != nil {
		return service.Result{}, err
	}

	svc := service.New(
		service.WithLogger(logger.Get().Named("service")),
		service.WithStore(store),
		service.WithModel(amp),
		service.WithReducer(likelihood.NewReducer(likelihood.WithPolicy(policy), likelihood.WithBlockSize(cfg.BlockSize))),
		service.WithContextKind(cfg.Context),
		service.WithThreads(cfg.ContextThreads()),
	)
	if err := svc.Start(ctx); err != nil {
		return service.Result{}, err
	}
	defer svc.Stop()

	return svc.Likelihood(ctx, params)
}

// firstVaryingP returns the index of the first record whose p differs from
// record 0.
func firstVaryingP(cols events.Columns) (int, bool) {
	for i := 1; i < len(cols.P); i++ {
		if cols.P[i] != cols.P[0] {
			return i, true
		}
	}
	return 0, false
}

// fail logs err, prints the one-line error report and returns exit code 1.
func fail(ctx context.Context, stderr io.Writer, err error) int {
	logger.Get().Error(ctx, "amplike failed", logger.String("kind", errorKind(err)), logger.Error(err))
	fmt.Fprintf(stderr, "error: %s: %v\n", errorKind(err), err)
	return 1
}

// errorKind names the failure class of err.
func errorKind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{config.ErrInvalidConfig, "InvalidConfig"},
		{config.ErrLoadConfig, "LoadConfig"},
		{events.ErrMalformedRecord, "MalformedRecord"},
		{events.ErrInputExhausted, "InputExhausted"},
		{events.ErrCapacityExceeded, "CapacityExceeded"},
		{events.ErrInvalidCount, "InvalidCount"},
		{amplitude.ErrAmplitudeEvaluationFailed, "AmplitudeEvaluationFailed"},
		{amplitude.ErrNotConcurrencySafe, "NotConcurrencySafe"},
		{amplitude.ErrUnknownModel, "UnknownModel"},
		{likelihood.ErrDegenerateAmplitude, "DegenerateAmplitude"},
		{likelihood.ErrAllExcluded, "AllExcluded"},
		{likelihood.ErrNonFiniteResult, "NonFiniteResult"},
		{likelihood.ErrUnknownPolicy, "UnknownPolicy"},
		{service.ErrEmptyStore, "EmptyStore"},
		{exec.ErrClosed, "Closed"},
		{queue.ErrClosed, "Closed"},
		{context.Canceled, "Canceled"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "Error"
}

// updateSystemMetrics samples memory and goroutine usage.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
