package fgraph_test

import (
	"context"
	"testing"

	"github.com/beliefmesh/gbp/fgraph"
)

// buildChain constructs an n-variable chain of equality factors with
// unary pins at both ends, the same shape as the convergence tests but
// sized for benchmarking round throughput.
func buildChain(n int) *fgraph.FactorGraph {
	vars := make([]*fgraph.VariableNode, n)
	for i := range vars {
		vars[i] = fgraph.NewVariable(1, nil)
	}

	factors := make([]*fgraph.Factor, 0, n+1)
	pin0, _ := fgraph.NewFactor([]*fgraph.VariableNode{vars[0]}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{0.0}, unaryIdentityJacobian, false)
	pinN, _ := fgraph.NewFactor([]*fgraph.VariableNode{vars[n-1]}, unaryIdentityMeasurement, tinyR(0.01), fgraph.Vector{1.0}, unaryIdentityJacobian, false)
	factors = append(factors, pin0, pinN)
	for i := 0; i < n-1; i++ {
		e, _ := fgraph.NewFactor([]*fgraph.VariableNode{vars[i], vars[i+1]}, equalityMeasurement, tinyR(0.01), fgraph.Vector{0.0}, equalityJacobian, false)
		factors = append(factors, e)
	}

	return fgraph.NewFactorGraph(vars, factors)
}

// BenchmarkSynchronousIteration measures the cost of one round over a
// 50-variable chain.
func BenchmarkSynchronousIteration(b *testing.B) {
	fg := buildChain(50)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = fg.SynchronousIteration(ctx)
	}
}

// BenchmarkFit measures full convergence over the same chain.
func BenchmarkFit(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		fg := buildChain(50)
		_, _ = fg.Fit(ctx)
	}
}
