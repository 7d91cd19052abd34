package gaussian

import "errors"

// Sentinel errors returned by the gaussian package. Callers should match
// against these with errors.Is; wrapped forms add dimension/context via
// fmt.Errorf("%w", ...) at the call site that detected the problem.
var (
	// ErrSingularCovariance indicates that a covariance matrix supplied to
	// SetFromMoments could not be inverted (no ridge term is added on that
	// path). This is a caller error (a degenerate prior, typically) and is
	// always surfaced rather than suppressed.
	ErrSingularCovariance = errors.New("gaussian: covariance matrix is singular")

	// ErrSingularPrecision indicates that a precision matrix could not be
	// inverted by ToMoments, even after the ridge term was added. Callers
	// that hit this mid-iteration (fgraph's VariableNode.updateBelief) are expected
	// to retain their previously cached moments rather than propagate the
	// error up through a synchronous round.
	ErrSingularPrecision = errors.New("gaussian: precision matrix is singular")

	// ErrDimensionMismatch indicates that a vector or matrix argument did
	// not have the dimension the GaussianState was constructed with.
	ErrDimensionMismatch = errors.New("gaussian: dimension mismatch")
)
