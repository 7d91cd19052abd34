package fgraph

import "errors"

// Sentinel errors returned by this package. Match with errors.Is;
// call sites wrap these with fmt.Errorf("%w: ...") to add context.
var (
	// ErrDimensionMismatch indicates a shape did not match: R's shape
	// against len(z) (reported by NewFactor), or a Jacobian's shape
	// against dim(z) × the adjacent variables' total dimension (reported
	// when the factor relinearizes during a round). Empty adjacency is
	// reported as ErrEmptyAdjacency instead.
	ErrDimensionMismatch = errors.New("fgraph: dimension mismatch")

	// ErrEmptyAdjacency indicates a factor was constructed with no
	// adjacent variables.
	ErrEmptyAdjacency = errors.New("fgraph: factor has no adjacent variables")

	// ErrIterationCapExceeded indicates Fit did not reach its convergence
	// tolerance before MaxIterations rounds. Not fatal: the caller
	// receives the iteration count used and the last computed beliefs.
	ErrIterationCapExceeded = errors.New("fgraph: iteration cap exceeded before convergence")

	// ErrUnknownVariable / ErrUnknownFactor indicate an id outside the
	// graph's current range was used to look up a peer.
	ErrUnknownVariable = errors.New("fgraph: unknown variable id")
	ErrUnknownFactor   = errors.New("fgraph: unknown factor id")
)
