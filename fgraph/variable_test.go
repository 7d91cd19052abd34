package fgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beliefmesh/gbp/fgraph"
)

// TestNewVariableDefaultPrior asserts a nil prior defaults to N(0,I).
func TestNewVariableDefaultPrior(t *testing.T) {
	v := fgraph.NewVariable(2, nil)
	assert.Equal(t, 2, v.Dim())
	assert.Equal(t, -1, v.ID())
	mean := v.Mean()
	assert.InDelta(t, 0, mean[0], 1e-12)
	assert.InDelta(t, 0, mean[1], 1e-12)
}

// TestReset asserts Reset(τ) inflates Λ by τ·I while leaving η alone.
func TestReset(t *testing.T) {
	v := fgraph.NewVariable(1, nil)
	etaBefore := v.Belief().Eta().AtVec(0)
	lamBefore := v.Belief().Lam().At(0, 0)

	v.Reset(0.2)

	assert.InDelta(t, etaBefore, v.Belief().Eta().AtVec(0), 1e-12)
	assert.InDelta(t, lamBefore+0.2, v.Belief().Lam().At(0, 0), 1e-9)
}
