package fgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/fgraph"
)

// TestUnaryFactorSingleRoundInvariant: a unary factor with precision
// P=4 and information e=2.5 folded once into an identity-prior (Λ=1)
// belief yields Λ=I+P=5, η=e=2.5. Tolerance allows for the ridge terms
// the relinearization and marginalization passes add along the way.
func TestUnaryFactorSingleRoundInvariant(t *testing.T) {
	v := fgraph.NewVariable(1, nil)
	f, err := fgraph.NewFactor([]*fgraph.VariableNode{v}, unaryIdentityMeasurement, tinyR(0.25), fgraph.Vector{0.625}, unaryIdentityJacobian, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v}, []*fgraph.Factor{f})
	require.NoError(t, fg.SynchronousIteration(context.Background()))

	assert.InDelta(t, 2.5, v.Belief().Eta().AtVec(0), 1e-4)
	assert.InDelta(t, 5.0, v.Belief().Lam().At(0, 0), 1e-4)
}

// TestHuberDisabledVsWithinThreshold asserts Huber enabled but with a
// residual inside ε_h produces the same message precision as Huber
// disabled entirely.
func TestHuberDisabledVsWithinThreshold(t *testing.T) {
	build := func(huber bool) float64 {
		v := fgraph.NewVariable(1, nil)
		// residual z=0.05 with R=1 gives m=0.05 < default ε_h=0.1.
		f, err := fgraph.NewFactor([]*fgraph.VariableNode{v}, unaryIdentityMeasurement, tinyR(1.0), fgraph.Vector{0.05}, unaryIdentityJacobian, huber)
		require.NoError(t, err)
		fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v}, []*fgraph.Factor{f})
		require.NoError(t, fg.SynchronousIteration(context.Background()))
		msg, ok := f.OutgoingMessage(v.ID())
		require.True(t, ok)

		return msg.Lam().At(0, 0)
	}

	assert.InDelta(t, build(false), build(true), 1e-12)
}

// TestHuberShrinksPrecisionBeyondThreshold asserts Huber enabled with a
// residual well beyond ε_h strictly shrinks the message precision
// relative to Huber disabled (the adaptive reweight downweights
// outliers rather than trusting them fully).
func TestHuberShrinksPrecisionBeyondThreshold(t *testing.T) {
	build := func(huber bool) float64 {
		v := fgraph.NewVariable(1, nil)
		// residual z=5 with R=1 gives m=5, far beyond ε_h=0.1.
		f, err := fgraph.NewFactor([]*fgraph.VariableNode{v}, unaryIdentityMeasurement, tinyR(1.0), fgraph.Vector{5.0}, unaryIdentityJacobian, huber)
		require.NoError(t, err)
		fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v}, []*fgraph.Factor{f})
		require.NoError(t, fg.SynchronousIteration(context.Background()))
		msg, ok := f.OutgoingMessage(v.ID())
		require.True(t, ok)

		return msg.Lam().At(0, 0)
	}

	withoutHuber := build(false)
	withHuber := build(true)
	assert.Less(t, withHuber, withoutHuber)
}

// TestEmptyAdjacencyRejected asserts NewFactor rejects a factor with no
// adjacent variables.
func TestEmptyAdjacencyRejected(t *testing.T) {
	_, err := fgraph.NewFactor(nil, unaryIdentityMeasurement, tinyR(1.0), fgraph.Vector{0}, unaryIdentityJacobian, false)
	assert.ErrorIs(t, err, fgraph.ErrEmptyAdjacency)
}

// TestJacobianShapeMismatchRejected asserts a Jacobian whose column
// count doesn't match the adjacency's total dimension is caught at
// relinearization time with ErrDimensionMismatch.
func TestJacobianShapeMismatchRejected(t *testing.T) {
	v0 := fgraph.NewVariable(1, nil)
	v1 := fgraph.NewVariable(1, nil)
	badJac := func(_ []fgraph.Vector, _ ...any) (fgraph.Matrix, error) {
		return mat.NewDense(1, 1, []float64{1}), nil // wrong column count: adjacency totals 2
	}
	f, err := fgraph.NewFactor([]*fgraph.VariableNode{v0, v1}, equalityMeasurement, tinyR(1.0), fgraph.Vector{0}, badJac, false)
	require.NoError(t, err)

	fg := fgraph.NewFactorGraph([]*fgraph.VariableNode{v0, v1}, []*fgraph.Factor{f})
	err = fg.SynchronousIteration(context.Background())
	assert.ErrorIs(t, err, fgraph.ErrDimensionMismatch)
}
