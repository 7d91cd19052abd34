// Package gaussian provides the canonical-form Gaussian representation
// shared by every node in a belief-propagation factor graph.
//
// A multivariate Gaussian N(μ, Σ) can be written in two equivalent forms:
//
//   - Moment form:    (μ, Σ)   — mean vector, covariance matrix.
//   - Canonical form: (η, Λ)   — information vector, precision matrix,
//     with Λ = Σ⁻¹ and η = Λμ.
//
// Canonical form is the one belief propagation actually computes in: the
// product of two Gaussians becomes a sum in canonical form (Λ = Λ₁+Λ₂,
// η = η₁+η₂), which is exactly the operation a variable performs when it
// folds incoming factor messages into its belief. State is kept in
// canonical form at rest and converted to moment form only on demand
// (ToMoments).
//
// Numerics: Λ is kept symmetric by averaging it with its transpose after
// every mutation (Symmetrize), and a small ridge (DefaultRidge) is added
// whenever Λ is used as a precision — i.e. before the Λ⁻¹ inversions in
// ToMoments and InvertDense — so that a near-singular precision doesn't
// make a mid-round belief readout fail outright. Those inversions go
// through a Cholesky factorization (gonum.org/v1/gonum/mat), falling
// back to a general LU-based inverse only if the ridge-regularized
// matrix still fails to factor as positive-definite (which should not
// happen in practice; it indicates a genuinely pathological Λ).
// SetFromMoments is the exception: a caller-supplied covariance is
// inverted with no ridge, so a rank-deficient Σ surfaces
// ErrSingularCovariance instead of being silently repaired.
package gaussian
