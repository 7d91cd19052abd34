package fgraph_test

import (
	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/fgraph"
)

// equalityMeasurement is h(x)=x_a-x_b for a two-variable "these should
// be equal" factor, the simplest possible linear factor and the one
// every worked example in this package's tests is built from.
func equalityMeasurement(means []fgraph.Vector, _ ...any) (fgraph.Vector, error) {
	return fgraph.Vector{means[0][0] - means[1][0]}, nil
}

func equalityJacobian(means []fgraph.Vector, _ ...any) (fgraph.Matrix, error) {
	return mat.NewDense(1, 2, []float64{1, -1}), nil
}

// unaryIdentityMeasurement is h(x)=x for a single-variable "pin to a
// target value" unary factor.
func unaryIdentityMeasurement(means []fgraph.Vector, _ ...any) (fgraph.Vector, error) {
	return fgraph.Vector{means[0][0]}, nil
}

func unaryIdentityJacobian(means []fgraph.Vector, _ ...any) (fgraph.Matrix, error) {
	return mat.NewDense(1, 1, []float64{1}), nil
}
