package fgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/fgraph"
	"github.com/beliefmesh/gbp/gaussian"
)

func tinyR(v float64) *mat.Dense { return mat.NewDense(1, 1, []float64{v}) }

// TestTwoVariableConsensus is the two-variable linear-factor consensus
// scenario: one equality factor tying v0 and v1 together, with a unary
// pin on v0 only. On a loop-free graph GBP is exact, so the converged
// means must match the batch MAP solve (priors, pin, and equality
// stacked into one linear system) and the two variables must agree to
// well within the equality factor's noise.
func TestTwoVariableConsensus(t *testing.T) {
	v0 := fgraph.NewVariable(1, nil)
	v1 := fgraph.NewVariable(1, nil)

	pin, err := fgraph.NewFactor([]*fgraph.VariableNode{v0}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{2.0}, unaryIdentityJacobian, false)
	require.NoError(t, err)

	eq, err := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(0.001), fgraph.Vector{0.0}, equalityJacobian, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v0, v1}, []*fgraph.Factor{pin, eq}, fgraph.WithMaxIterations(50))

	rounds, err := fg.Fit(context.Background())
	require.NoError(t, err)
	assert.Greater(t, rounds, 0)

	// Batch MAP: precision = prior I + pin JᵀΛJ + equality JᵀΛJ,
	// information = pin's JᵀΛz only (z=0 elsewhere).
	batch := mat.NewDense(2, 2, []float64{
		1 + 100 + 1000, -1000,
		-1000, 1 + 1000,
	})
	info := mat.NewVecDense(2, []float64{100 * 2.0, 0})
	var batchMu mat.VecDense
	require.NoError(t, batchMu.SolveVec(batch, info))

	assert.InDelta(t, batchMu.AtVec(0), v0.Mean()[0], 1e-3)
	assert.InDelta(t, batchMu.AtVec(1), v1.Mean()[0], 1e-3)
	assert.InDelta(t, v0.Mean()[0], v1.Mean()[0], 5e-3)
}

// TestThreeVariableChainConverges is the chain-with-two-pins scenario:
// v0 pinned near 0, v2 pinned near 1, equality factors v0-v1 and v1-v2.
// The middle variable should converge to 0.5.
func TestThreeVariableChainConverges(t *testing.T) {
	v0 := fgraph.NewVariable(1, nil)
	v1 := fgraph.NewVariable(1, nil)
	v2 := fgraph.NewVariable(1, nil)

	pin0, err := fgraph.NewFactor([]*fgraph.VariableNode{v0}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{0.0}, unaryIdentityJacobian, false)
	require.NoError(t, err)
	pin2, err := fgraph.NewFactor([]*fgraph.VariableNode{v2}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{1.0}, unaryIdentityJacobian, false)
	require.NoError(t, err)
	e01, err := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(0.001), fgraph.Vector{0.0}, equalityJacobian, false)
	require.NoError(t, err)
	e12, err := fgraph.NewFactor([]*fgraph.VariableNode{v1, v2}, equalityMeasurement, tinyR(0.001), fgraph.Vector{0.0}, equalityJacobian, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph(
		[]*fgraph.VariableNode{v0, v1, v2},
		[]*fgraph.Factor{pin0, pin2, e01, e12},
		fgraph.WithMaxIterations(100),
	)

	_, err = fg.Fit(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, v1.Mean()[0], 1e-2)
}

// TestSymmetryInvariantAcrossRounds asserts every belief's Λ stays
// symmetric to within ten times gaussian.SymmetryTolerance after Fit.
func TestSymmetryInvariantAcrossRounds(t *testing.T) {
	v0 := fgraph.NewVariable(1, nil)
	v1 := fgraph.NewVariable(1, nil)
	eq, err := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(0.01), fgraph.Vector{0.0}, equalityJacobian, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v0, v1}, []*fgraph.Factor{eq}, fgraph.WithMaxIterations(20))
	_, err = fg.Fit(context.Background())
	require.NoError(t, err)

	for _, v := range fg.Variables() {
		lam := v.Belief().Lam()
		r, c := lam.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.InDelta(t, lam.At(i, j), lam.At(j, i), gaussian.SymmetryTolerance*10)
			}
		}
	}
}

// TestIterationCapExceeded asserts Fit reports ErrIterationCapExceeded
// (without panicking or discarding state) when the cap is too low to
// reach the configured tolerance. The factor asks for v0-v1=1 while
// both priors sit at 0, so the first round moves the means and cannot
// already satisfy the tolerance.
func TestIterationCapExceeded(t *testing.T) {
	v0 := fgraph.NewVariable(1, nil)
	v1 := fgraph.NewVariable(1, nil)
	eq, err := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(0.001), fgraph.Vector{1.0}, equalityJacobian, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph(
		[]*fgraph.VariableNode{v0, v1},
		[]*fgraph.Factor{eq},
		fgraph.WithMaxIterations(1),
		fgraph.WithTolerance(1e-12),
	)

	rounds, err := fg.Fit(context.Background())
	assert.ErrorIs(t, err, fgraph.ErrIterationCapExceeded)
	assert.Equal(t, 1, rounds)
}

// TestParallelMatchesSequential asserts WithParallel(true) produces the
// same converged means as the sequential schedule (within floating
// point tolerance), confirming the read-previous/write-own discipline
// holds under concurrent execution.
func TestParallelMatchesSequential(t *testing.T) {
	build := func(parallel bool) float64 {
		v0 := fgraph.NewVariable(1, nil)
		v1 := fgraph.NewVariable(1, nil)
		v2 := fgraph.NewVariable(1, nil)
		pin0, _ := fgraph.NewFactor([]*fgraph.VariableNode{v0}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{0.0}, unaryIdentityJacobian, false)
		pin2, _ := fgraph.NewFactor([]*fgraph.VariableNode{v2}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{1.0}, unaryIdentityJacobian, false)
		e01, _ := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(0.001), fgraph.Vector{0.0}, equalityJacobian, false)
		e12, _ := fgraph.NewFactor([]*fgraph.VariableNode{v1, v2}, equalityMeasurement, tinyR(0.001), fgraph.Vector{0.0}, equalityJacobian, false)

		fg := fgraph.NewFactorGraph(
			[]*fgraph.VariableNode{v0, v1, v2},
			[]*fgraph.Factor{pin0, pin2, e01, e12},
			fgraph.WithMaxIterations(100),
			fgraph.WithParallel(parallel),
		)
		_, _ = fg.Fit(context.Background())

		return v1.Mean()[0]
	}

	assert.InDelta(t, build(false), build(true), 1e-6)
}
