package fgraph

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/gaussian"
)

// FactorGraph owns a fixed set of variables and factors for its
// lifetime. Ids are assigned at construction (the position of each
// node in the slices passed to NewFactorGraph) and never change
// afterward; a topology change (birth/kill/merge, driven by the
// contour package) builds a brand new FactorGraph rather than mutating
// this one in place.
type FactorGraph struct {
	variables []*VariableNode
	factors   []*Factor
	opts      Options
}

// NewFactorGraph takes ownership of vars and factors, assigns each a
// graph-local id equal to its position in the respective slice, and
// resolves every factor's adjacency into those ids. vars and factors
// must have been built with NewVariable/NewFactor (so that NewFactor's
// adjacency registration already populated each variable's pending
// factor list).
func NewFactorGraph(vars []*VariableNode, factors []*Factor, opts ...Option) *FactorGraph {
	cfg := DefaultOptions()
	for _, o := range opts {
		o(&cfg)
	}

	fg := &FactorGraph{
		variables: vars,
		factors:   factors,
		opts:      cfg,
	}

	for i, v := range vars {
		v.id = i
	}
	for i, f := range factors {
		f.id = i
		f.inbox = make(map[int]*gaussian.GaussianState, len(f.adjVars))
		f.outbox = make(map[int]*gaussian.GaussianState, len(f.adjVars))
		for _, v := range f.adjVars {
			f.inbox[v.id] = v.Belief().Clone()
		}
	}

	return fg
}

// Variable returns the variable with the given graph-local id.
func (fg *FactorGraph) Variable(id int) (*VariableNode, error) {
	if id < 0 || id >= len(fg.variables) {
		return nil, fmt.Errorf("fgraph: Variable(%d): %w", id, ErrUnknownVariable)
	}

	return fg.variables[id], nil
}

// FactorByID returns the factor with the given graph-local id.
func (fg *FactorGraph) FactorByID(id int) (*Factor, error) {
	if id < 0 || id >= len(fg.factors) {
		return nil, fmt.Errorf("fgraph: FactorByID(%d): %w", id, ErrUnknownFactor)
	}

	return fg.factors[id], nil
}

// Variables returns every variable in the graph, indexed by id.
func (fg *FactorGraph) Variables() []*VariableNode { return fg.variables }

// Factors returns every factor in the graph, indexed by id.
func (fg *FactorGraph) Factors() []*Factor { return fg.factors }

// SynchronousIteration runs one round of the three-pass schedule
// documented in the package doc: every factor relinearizes from its
// inbox, every factor computes outgoing messages by Schur complement,
// every variable folds incoming messages into its belief and emits new
// variable-to-factor messages. Returns ctx.Err() if ctx is already
// done before the round starts.
func (fg *FactorGraph) SynchronousIteration(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fg.forEachFactor(func(f *Factor) error { return f.relinearize() }); err != nil {
		return err
	}
	if err := fg.forEachFactor(func(f *Factor) error { return f.computeOutgoingMessages() }); err != nil {
		return err
	}
	if err := fg.forEachVariable(func(v *VariableNode) error { return v.updateBelief(fg) }); err != nil {
		return err
	}

	return nil
}

// Fit repeats SynchronousIteration until the maximum per-variable
// |Δμ| across a round drops below the configured tolerance, or the
// configured iteration cap is reached. Returns the number of rounds
// run; if the cap was hit first, also returns ErrIterationCapExceeded
// (the last computed beliefs are still the ones retained on the
// graph — this is a logged, non-fatal condition).
func (fg *FactorGraph) Fit(ctx context.Context) (int, error) {
	for iter := 1; iter <= fg.opts.MaxIterations; iter++ {
		prevMeans := fg.snapshotMeans()

		if err := fg.SynchronousIteration(ctx); err != nil {
			return iter - 1, err
		}

		maxDelta := 0.0
		for _, v := range fg.variables {
			if v.moments == nil {
				continue
			}
			d := deltaMu(v.moments.Mu, prevMeans[v.id])
			if d > maxDelta {
				maxDelta = d
			}
		}

		fg.opts.Logger.Debug().
			Int("round", iter).
			Float64("max_delta_mu", maxDelta).
			Msg("fgraph: synchronous round complete")

		if maxDelta < fg.opts.Tolerance {
			return iter, nil
		}
	}

	fg.opts.Logger.Warn().
		Int("max_iterations", fg.opts.MaxIterations).
		Msg("fgraph: Fit did not converge before iteration cap")

	return fg.opts.MaxIterations, ErrIterationCapExceeded
}

func (fg *FactorGraph) snapshotMeans() map[int]*mat.VecDense {
	out := make(map[int]*mat.VecDense, len(fg.variables))
	for _, v := range fg.variables {
		if v.moments != nil {
			out[v.id] = v.moments.Mu
		}
	}

	return out
}

func (fg *FactorGraph) forEachFactor(fn func(*Factor) error) error {
	return runOver(len(fg.factors), fg.opts.Parallel, func(i int) error { return fn(fg.factors[i]) })
}

func (fg *FactorGraph) forEachVariable(fn func(*VariableNode) error) error {
	return runOver(len(fg.variables), fg.opts.Parallel, func(i int) error { return fn(fg.variables[i]) })
}

// runOver invokes fn(i) for every i in [0,n). If parallel is false it
// runs sequentially in order; if true it fans out one goroutine per
// index and waits for all to finish before returning — safe here only
// because every fn in this package reads the previous pass's state and
// writes exclusively to its own factor's outbox, its own variable's
// belief, or that variable's own pre-existing entry in each adjacent
// factor's inbox (updated in place, never inserted into the map).
func runOver(n int, parallel bool, fn func(i int) error) error {
	if !parallel {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}

		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}
