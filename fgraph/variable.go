package fgraph

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/gaussian"
)

// VariableNode is one continuous-valued unknown in a factor graph. Its
// id is assigned by the FactorGraph it is added to and is stable only
// for that graph's lifetime; a node surviving into a new frame (see
// the contour package's topology manager) is renumbered along with
// everything else.
type VariableNode struct {
	id    int
	dim   int
	prior *gaussian.GaussianState

	belief  *gaussian.GaussianState
	moments *gaussian.Moments // cached μ,Σ; retained across a failed inversion

	adjFactors []*Factor // resolved to ids once added to a graph
}

// NewVariable constructs a variable of the given dimension with the
// supplied prior, or N(0,I) (gaussian.New(dim)) if prior is nil. The
// returned node is unattached to any graph — pass it to
// NewFactorGraph to assign it an id.
func NewVariable(dim int, prior *gaussian.GaussianState) *VariableNode {
	if prior == nil {
		prior = gaussian.New(dim)
	}

	belief := prior.Clone()
	moments, err := belief.ToMoments()
	if err != nil {
		// The identity-precision default prior is always invertible;
		// a caller-supplied prior that isn't will simply carry a nil
		// cache until the first successful updateBelief.
		moments = nil
	}

	return &VariableNode{
		id:      -1,
		dim:     dim,
		prior:   prior,
		belief:  belief,
		moments: moments,
	}
}

// ID returns the variable's graph-local id, or -1 if not yet added to
// a graph.
func (v *VariableNode) ID() int { return v.id }

// Dim returns the variable's dimension.
func (v *VariableNode) Dim() int { return v.dim }

// Belief returns the variable's current canonical belief. The returned
// value aliases internal storage; callers must not mutate it.
func (v *VariableNode) Belief() *gaussian.GaussianState { return v.belief }

// Prior returns the variable's prior, unaffected by updateBelief.
func (v *VariableNode) Prior() *gaussian.GaussianState { return v.prior }

// Moments returns the cached moment view (μ,Σ) of the current belief,
// last successfully computed. Returns nil if the belief's precision
// has never been invertible.
func (v *VariableNode) Moments() *gaussian.Moments { return v.moments }

// Mean returns the cached mean, or nil if Moments is nil.
func (v *VariableNode) Mean() Vector {
	if v.moments == nil {
		return nil
	}
	out := make(Vector, v.dim)
	for i := range out {
		out[i] = v.moments.Mu.AtVec(i)
	}

	return out
}

// Reset adds τ·I to the belief's precision, leaving η unchanged — the
// between-frame transition the topology manager applies before
// regenerating factors for a new frame. With η held fixed, the belief's
// implied mean Λ⁻¹η moves as well; the cached moments (Moments, Mean)
// are not recomputed by Reset.
func (v *VariableNode) Reset(tau float64) {
	v.belief.AddRidge(tau)
	v.belief.Symmetrize()
}

// ResetAdjacency clears every previously-registered factor adjacency.
// Used by callers (the contour package's per-frame topology rebuild)
// that keep a VariableNode's identity across frames but regenerate an
// entirely new factor set over the surviving nodes each frame; without
// this, adjFactors would keep accumulating every factor ever
// constructed against this node across every past frame.
func (v *VariableNode) ResetAdjacency() {
	v.adjFactors = v.adjFactors[:0]
}

// updateBelief folds every adjacent factor's outgoing message into
// v's belief, refreshes the cached moments (retaining the previous
// cache on a singular readout), and writes the belief-minus-message
// back into each adjacent factor's inbox for the next round. Called
// only by FactorGraph.SynchronousIteration's third pass.
func (v *VariableNode) updateBelief(fg *FactorGraph) error {
	next := v.prior.Clone()
	for _, fid := range v.adjFactorIDsUnsafe() {
		f := fg.factors[fid]
		msg, ok := f.outbox[v.id]
		if !ok {
			continue // factor hasn't produced a message yet (first round)
		}
		if err := next.AddCanonical(msg); err != nil {
			return fmt.Errorf("fgraph: variable %d updateBelief: %w", v.id, err)
		}
	}
	next.Symmetrize()
	v.belief = next

	if m, err := v.belief.ToMoments(); err == nil {
		v.moments = m
	}
	// else: retain v.moments from the previous round.

	for _, fid := range v.adjFactorIDsUnsafe() {
		f := fg.factors[fid]
		msg, ok := f.outbox[v.id]
		if !ok {
			continue
		}
		// Overwrite this variable's own inbox entry in place (NewFactorGraph
		// created one per adjacent variable) instead of assigning into the
		// factor's map, so variables updated in parallel never write the
		// same map concurrently.
		toSend := f.inbox[v.id]
		if err := toSend.SetCanonical(v.belief.Eta(), v.belief.Lam()); err != nil {
			return fmt.Errorf("fgraph: variable %d emit message: %w", v.id, err)
		}
		if err := toSend.SubCanonical(msg); err != nil {
			return fmt.Errorf("fgraph: variable %d emit message: %w", v.id, err)
		}
	}

	return nil
}

// adjFactorIDsUnsafe returns the ids of adjFactors, resolved at the
// time the graph attached them. Named "unsafe" only to flag that it
// assumes the graph has already run resolution — every call site here
// is reached exclusively from within FactorGraph, after resolution.
func (v *VariableNode) adjFactorIDsUnsafe() []int {
	ids := make([]int, len(v.adjFactors))
	for i, f := range v.adjFactors {
		ids[i] = f.id
	}

	return ids
}

// deltaMu returns ‖new-old‖∞ between two mean vectors of the same
// dimension, used by FactorGraph.Fit's convergence check.
func deltaMu(a, b *mat.VecDense) float64 {
	if a == nil || b == nil {
		return 0
	}
	max := 0.0
	for i := 0; i < a.Len(); i++ {
		d := a.AtVec(i) - b.AtVec(i)
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}

	return max
}
