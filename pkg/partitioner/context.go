package partitioner

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// Context owns the configuration and runtime of one partitioning client.
// It replaces process-wide singletons: every phase receives what it needs
// from here and the entry point tears it down.
type Context struct {
	Config *Config
	Logger zerolog.Logger
	pool   *parallel.Pool
}

// NewContext creates a context with the SPEED defaults.
func NewContext() *Context {
	cfg := NewConfig()
	return &Context{
		Config: cfg,
		Logger: cfg.CreateLogger(),
	}
}

// Free releases the context. The context holds no process-wide state, so
// this only exists to mirror the external API surface.
func (ctx *Context) Free() {
	ctx.pool = nil
}

// LoadPreset applies one of the built-in profiles.
func (ctx *Context) LoadPreset(preset Preset) {
	ctx.Config.LoadPreset(preset)
	ctx.Logger = ctx.Config.CreateLogger()
}

// SetParameter applies an externally supplied parameter, returning the
// integer codes of the public API.
func (ctx *Context) SetParameter(key, value string) int {
	code := ctx.Config.SetParameter(key, value)
	if key == "verbose" && code == ParamOK {
		ctx.Logger = ctx.Config.CreateLogger()
	}
	return code
}

// InitializeThreadPool sizes the process-wide worker pool. Thread counts
// beyond the available cpus are capped with a warning. The interleaved
// flag mirrors the NUMA knob of the external API; allocations in a single
// Go address space need no placement policy, so it is accepted and ignored.
func InitializeThreadPool(numThreads int, interleavedAllocations bool) {
	available := runtime.NumCPU()
	if numThreads > available {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
		logger.Warn().
			Int("requested", numThreads).
			Int("available", available).
			Msg("thread count capped to available cpus")
		numThreads = available
	}
	if numThreads < 1 {
		numThreads = 1
	}
	parallel.Init(numThreads)
}

// Pool returns the worker pool used by this context.
func (ctx *Context) Pool() *parallel.Pool {
	if ctx.pool == nil {
		ctx.pool = parallel.Default()
	}
	return ctx.pool
}
