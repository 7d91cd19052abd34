package gaussian

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultRidge is the small diagonal term added to a precision matrix
// before it is inverted, keeping otherwise-singular or ill-conditioned
// Λ invertible.
const DefaultRidge = 1e-6

// SymmetryTolerance bounds how far (Λ-Λᵀ)/2 may still deviate from Λ
// after Symmetrize and is only used by tests asserting the invariant;
// Symmetrize itself is unconditional, not threshold-gated.
const SymmetryTolerance = 1e-10

// GaussianState is a multivariate Gaussian held in canonical (information)
// form: η (Eta) is the length-d information vector, Λ (Lam) is the d×d
// precision matrix. The zero value is not meaningful; construct with New
// and then, if needed, overwrite with SetFromMoments or SetCanonical.
type GaussianState struct {
	dim int
	eta *mat.VecDense
	lam *mat.Dense
}

// New returns a GaussianState of the given dimension with η=0 and Λ=I,
// i.e. an (improper-free) unit-precision prior centered at the origin.
// Using the identity rather than the zero matrix for Λ means a freshly
// constructed state is already invertible, so ToMoments never fails on
// a never-updated node.
//
// Panics if d <= 0 (programmer error: dimensions are fixed at
// construction throughout this module and never derived from data).
func New(d int) *GaussianState {
	if d <= 0 {
		panic(fmt.Sprintf("gaussian.New: dimension must be positive, got %d", d))
	}

	lam := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		lam.Set(i, i, 1.0)
	}

	return &GaussianState{
		dim: d,
		eta: mat.NewVecDense(d, nil),
		lam: lam,
	}
}

// Dim returns the dimensionality this state was constructed with.
func (g *GaussianState) Dim() int { return g.dim }

// Eta returns the information vector. The returned vector aliases the
// state's internal storage and must not be mutated by callers; use
// Clone to obtain an independent copy first if mutation is needed.
func (g *GaussianState) Eta() *mat.VecDense { return g.eta }

// Lam returns the precision matrix, aliasing internal storage under the
// same no-mutation contract as Eta.
func (g *GaussianState) Lam() *mat.Dense { return g.lam }

// SetCanonical overwrites η and Λ directly (e.g. after a factor or
// message computation has built them elsewhere). Dimensions of eta and
// lam must match the state's own; SetCanonical does not symmetrize —
// callers that construct Λ from a non-symmetric intermediate (as factor
// marginalization does) must call Symmetrize themselves afterward.
func (g *GaussianState) SetCanonical(eta *mat.VecDense, lam *mat.Dense) error {
	if eta.Len() != g.dim {
		return fmt.Errorf("gaussian: SetCanonical eta length %d != dim %d: %w", eta.Len(), g.dim, ErrDimensionMismatch)
	}
	r, c := lam.Dims()
	if r != g.dim || c != g.dim {
		return fmt.Errorf("gaussian: SetCanonical lam shape %dx%d != dim %d: %w", r, c, g.dim, ErrDimensionMismatch)
	}

	g.eta.CopyVec(eta)
	g.lam.Copy(lam)

	return nil
}

// Clone returns an independent deep copy of g.
func (g *GaussianState) Clone() *GaussianState {
	eta := mat.NewVecDense(g.dim, nil)
	eta.CopyVec(g.eta)
	lam := mat.NewDense(g.dim, g.dim, nil)
	lam.Copy(g.lam)

	return &GaussianState{dim: g.dim, eta: eta, lam: lam}
}

// Symmetrize replaces Λ with (Λ+Λᵀ)/2 in place. This must be called
// after any mutation that could have introduced floating-point
// asymmetry — message marginalization, belief accumulation, and
// SetFromMoments all do this before returning.
func (g *GaussianState) Symmetrize() {
	var t mat.Dense
	t.CloneFrom(g.lam.T())
	g.lam.Add(g.lam, &t)
	g.lam.Scale(0.5, g.lam)
}

// AddRidge adds eps·I to Λ in place, without symmetrizing. fgraph's
// VariableNode.Reset uses it for the between-frame τ·I term; the ridge
// ToMoments and InvertDense apply before inverting is added to a
// temporary copy instead and does not go through AddRidge.
func (g *GaussianState) AddRidge(eps float64) {
	for i := 0; i < g.dim; i++ {
		g.lam.Set(i, i, g.lam.At(i, i)+eps)
	}
}

// AddCanonical folds another canonical Gaussian into g in place:
// η += other.η, Λ += other.Λ. This is the operation that makes
// canonical form natural for belief propagation — products of
// independent Gaussian potentials are sums of their (η,Λ).
// Does not symmetrize; call Symmetrize afterward if the result will be
// inverted.
func (g *GaussianState) AddCanonical(other *GaussianState) error {
	if other.dim != g.dim {
		return fmt.Errorf("gaussian: AddCanonical dim %d != %d: %w", other.dim, g.dim, ErrDimensionMismatch)
	}

	g.eta.AddVec(g.eta, other.eta)
	g.lam.Add(g.lam, other.lam)

	return nil
}

// SubCanonical is the inverse of AddCanonical: η -= other.η, Λ -= other.Λ.
// VariableNode uses this to strip a factor's own contribution back out
// of a freshly updated belief before sending the result back to that
// factor (so the factor never sees its own message reflected back).
func (g *GaussianState) SubCanonical(other *GaussianState) error {
	if other.dim != g.dim {
		return fmt.Errorf("gaussian: SubCanonical dim %d != %d: %w", other.dim, g.dim, ErrDimensionMismatch)
	}

	g.eta.SubVec(g.eta, other.eta)
	g.lam.Sub(g.lam, other.lam)

	return nil
}
