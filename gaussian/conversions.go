package gaussian

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Moments is the moment-form view of a GaussianState: mean μ and
// covariance Σ. It is a plain value (not aliased to GaussianState
// internals) so callers may cache and compare it freely; a
// VariableNode retains one per successful belief readout.
type Moments struct {
	Mu    *mat.VecDense
	Sigma *mat.Dense
}

// SetFromMoments overwrites g's canonical form from a mean vector and
// covariance matrix: Λ = Σ⁻¹, η = Λμ. Returns ErrSingularCovariance,
// wrapped with the detected cause, if Σ is not invertible — this is
// always a caller error (a degenerate prior) and is never suppressed
// the way ToMoments suppresses a mid-round singular precision. Unlike
// the precision-inversion path, no ridge is applied here: a
// rank-deficient Σ must surface, not be silently repaired into a
// near-infinite precision.
func (g *GaussianState) SetFromMoments(mu *mat.VecDense, sigma *mat.Dense) error {
	if mu.Len() != g.dim {
		return fmt.Errorf("gaussian: SetFromMoments mu length %d != dim %d: %w", mu.Len(), g.dim, ErrDimensionMismatch)
	}
	r, c := sigma.Dims()
	if r != g.dim || c != g.dim {
		return fmt.Errorf("gaussian: SetFromMoments sigma shape %dx%d != dim %d: %w", r, c, g.dim, ErrDimensionMismatch)
	}

	var lam mat.Dense
	if err := lam.Inverse(sigma); err != nil {
		return fmt.Errorf("gaussian: SetFromMoments: %w: %v", ErrSingularCovariance, err)
	}

	var eta mat.VecDense
	eta.MulVec(&lam, mu)

	g.lam.Copy(&lam)
	g.eta.CopyVec(&eta)
	g.Symmetrize()

	return nil
}

// ToMoments returns the moment-form view (μ, Σ) of g, computing it via a
// ridge-regularized Cholesky solve/inverse of Λ. If Λ (even with the
// ridge added) is not positive-definite, ToMoments falls back to a
// general LU inverse of the ridged Λ; only if that also fails does it
// return ErrSingularPrecision and a nil Moments. Callers performing a
// belief update are expected to retain their previously cached Moments
// in that case rather than propagate the error into the round (see
// fgraph's VariableNode.updateBelief).
func (g *GaussianState) ToMoments() (*Moments, error) {
	sym := symmetricRidged(g.lam, g.dim, DefaultRidge)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); ok {
		mu := mat.NewVecDense(g.dim, nil)
		if err := chol.SolveVecTo(mu, g.eta); err != nil {
			return nil, fmt.Errorf("gaussian: ToMoments solve: %w: %v", ErrSingularPrecision, err)
		}

		var sigmaSym mat.SymDense
		if err := chol.InverseTo(&sigmaSym); err != nil {
			return nil, fmt.Errorf("gaussian: ToMoments inverse: %w: %v", ErrSingularPrecision, err)
		}
		sigma := mat.NewDense(g.dim, g.dim, nil)
		sigma.CloneFrom(&sigmaSym)

		return &Moments{Mu: mu, Sigma: sigma}, nil
	}

	// Cholesky failed even with the ridge (Λ not PD, e.g. caller fed a
	// pathological or negative-definite matrix through SetCanonical
	// directly). Fall back to a general inverse so an honest
	// ErrSingularPrecision is the only path that returns nil.
	ridged := mat.NewDense(g.dim, g.dim, nil)
	ridged.Copy(g.lam)
	for i := 0; i < g.dim; i++ {
		ridged.Set(i, i, ridged.At(i, i)+DefaultRidge)
	}
	var inv mat.Dense
	if err := inv.Inverse(ridged); err != nil {
		return nil, fmt.Errorf("gaussian: ToMoments: %w: %v", ErrSingularPrecision, err)
	}

	mu := mat.NewVecDense(g.dim, nil)
	mu.MulVec(&inv, g.eta)

	return &Moments{Mu: mu, Sigma: &inv}, nil
}

// InvertDense inverts m (a d×d matrix, not necessarily already
// symmetric) via the same ridge-regularized Cholesky-then-LU-fallback
// policy ToMoments uses internally. Exported so other packages in this
// module (fgraph's Schur-complement marginalization) share exactly one
// inversion policy with GaussianState instead of reimplementing it.
func InvertDense(m *mat.Dense) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("gaussian: InvertDense non-square %dx%d: %w", r, c, ErrDimensionMismatch)
	}

	return invertWithRidge(m, r)
}

// invertWithRidge inverts m (a d×d matrix, not necessarily already
// symmetric) via a ridge-regularized Cholesky factorization, falling
// back to a general LU-based inverse if the ridged matrix is still not
// positive-definite. Returns the resulting dense inverse.
func invertWithRidge(m *mat.Dense, d int) (*mat.Dense, error) {
	sym := symmetricRidged(m, d, DefaultRidge)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); ok {
		var invSym mat.SymDense
		if err := chol.InverseTo(&invSym); err == nil {
			inv := mat.NewDense(d, d, nil)
			inv.CloneFrom(&invSym)

			return inv, nil
		}
	}

	ridged := mat.NewDense(d, d, nil)
	ridged.Copy(m)
	for i := 0; i < d; i++ {
		ridged.Set(i, i, ridged.At(i, i)+DefaultRidge)
	}
	var inv mat.Dense
	if err := inv.Inverse(ridged); err != nil {
		return nil, err
	}

	return &inv, nil
}

// symmetricRidged builds a *mat.SymDense from the upper triangle of
// (m+mᵀ)/2 + eps·I, the form every Cholesky factorization in this
// package is performed on.
func symmetricRidged(m *mat.Dense, d int, eps float64) *mat.SymDense {
	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			if i == j {
				v += eps
			}
			sym.SetSym(i, j, v)
		}
	}

	return sym
}
