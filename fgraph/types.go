package fgraph

import "gonum.org/v1/gonum/mat"

// Vector is a plain mean or measurement vector. Factor closures operate
// on slices of Vector (one per adjacent variable, in adjacency order)
// rather than on a single flattened gonum type, since callers
// (measurement/Jacobian closures) think in terms of "this variable's
// mean", "that variable's mean".
type Vector = []float64

// Matrix is the measurement covariance / Jacobian type, a thin alias
// over gonum's dense matrix so closures never need to import mat
// themselves for the common case.
type Matrix = *mat.Dense

// MeasurementFunc is a factor's measurement closure h(x⁰): given the
// current linearization point (one mean per adjacent variable, in
// adjacency order) and the factor's fixed extra args, it returns the
// predicted measurement. Pure function of its arguments — no closure
// over mutable factor or graph state.
type MeasurementFunc func(means []Vector, args ...any) (Vector, error)

// JacobianFunc is a factor's Jacobian closure J=∂h/∂x|x⁰, evaluated at
// the same linearization point as MeasurementFunc. The returned matrix
// has shape dim(z) × Σd_i, columns ordered to match the adjacent
// variables' declared dimensions in adjacency order.
type JacobianFunc func(means []Vector, args ...any) (Matrix, error)
