package fgraph

import "github.com/rs/zerolog"

// DefaultTolerance is the max-|Δμ| convergence threshold Fit uses when
// no WithTolerance option is supplied.
const DefaultTolerance = 1e-4

// DefaultMaxIterations bounds SynchronousIteration rounds per Fit call
// when no WithMaxIterations option is supplied.
const DefaultMaxIterations = 100

// Options configures a FactorGraph's scheduling behavior.
type Options struct {
	Tolerance     float64
	MaxIterations int
	Parallel      bool
	Logger        zerolog.Logger
}

// Option is a functional option for NewFactorGraph.
type Option func(*Options)

// DefaultOptions returns the scheduling defaults: tolerance 1e-4, a
// 100-round cap, sequential (non-parallel) execution, and a disabled
// (nop) logger.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		Parallel:      false,
		Logger:        zerolog.Nop(),
	}
}

// WithTolerance sets the max-|Δμ| convergence threshold Fit stops at.
func WithTolerance(tol float64) Option {
	return func(o *Options) { o.Tolerance = tol }
}

// WithMaxIterations caps the number of synchronous rounds Fit will run
// before returning ErrIterationCapExceeded.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithParallel enables goroutine-based fan-out of each synchronous
// round's three passes across factors/variables. Safe because each
// pass only reads the previous pass's state and writes its own factor's
// outbox, or its own variable's belief and that variable's own entry in
// each adjacent factor's inbox.
func WithParallel(enabled bool) Option {
	return func(o *Options) { o.Parallel = enabled }
}

// WithLogger attaches a zerolog.Logger the graph uses for sparse
// round/convergence diagnostics (one Debug event per Fit round and a
// Warn when the iteration cap is hit; nothing from inside a round's
// passes).
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
