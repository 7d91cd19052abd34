package fgraph

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/gaussian"
)

// stackVectors concatenates vs into one contiguous *mat.VecDense, in
// order. Used to build the linearization point x⁰ a factor's
// measurement/Jacobian closures are evaluated at.
func stackVectors(vs []Vector) *mat.VecDense {
	n := 0
	for _, v := range vs {
		n += len(v)
	}
	out := mat.NewVecDense(n, nil)
	i := 0
	for _, v := range vs {
		for _, x := range v {
			out.SetVec(i, x)
			i++
		}
	}

	return out
}

// blockOffsets returns, for a slice of per-variable dimensions, the
// starting offset of each variable's block within the stacked vector
// and the total dimension.
func blockOffsets(dims []int) (offsets []int, total int) {
	offsets = make([]int, len(dims))
	for i, d := range dims {
		offsets[i] = total
		total += d
	}

	return offsets, total
}

// complementIndices returns every index in [0,n) outside [start,start+d).
func complementIndices(n, start, d int) []int {
	out := make([]int, 0, n-d)
	for i := 0; i < start; i++ {
		out = append(out, i)
	}
	for i := start + d; i < n; i++ {
		out = append(out, i)
	}

	return out
}

// gatherVec extracts the entries of v at idx into a new vector, order
// preserved.
func gatherVec(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, j := range idx {
		out.SetVec(i, v.AtVec(j))
	}

	return out
}

// gatherMat extracts the submatrix m[rows, cols] into a new dense
// matrix. rows and cols may each be non-contiguous index sets, which
// is the common case here: marginalizing out every adjacent variable
// except one leaves a "hole" at the kept block.
func gatherMat(m *mat.Dense, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, m.At(r, c))
		}
	}

	return out
}

// addBlockVec adds src into dst starting at offset start, in place.
func addBlockVec(dst *mat.VecDense, start int, src *mat.VecDense) {
	for i := 0; i < src.Len(); i++ {
		dst.SetVec(start+i, dst.AtVec(start+i)+src.AtVec(i))
	}
}

// addBlockMat adds src into dst at [start:start+r, start:start+c], in
// place. Used to fold a variable-to-factor message into its own
// diagonal block of the factor's stacked local form.
func addBlockMat(dst *mat.Dense, start int, src *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(start+i, start+j, dst.At(start+i, start+j)+src.At(i, j))
		}
	}
}

// symmetrizeRidge returns (m+mᵀ)/2 + eps·I as a fresh matrix, the
// policy every canonical-form precision in this package is put through
// before it is stored or inverted.
func symmetrizeRidge(m *mat.Dense, eps float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			if i == j {
				v += eps
			}
			out.Set(i, j, v)
		}
	}

	return out
}

// schurComplement marginalizes the "b" block out of a stacked (η,Λ)
// pair, leaving the message for the "a" block:
//
//	η_msg = η_a − Λ_ab Λ_bb⁻¹ η_b
//	Λ_msg = Λ_aa − Λ_ab Λ_bb⁻¹ Λ_ba
//
// If b is empty (a unary factor), the message is (η_a, Λ_aa)
// unchanged. The result is symmetrized and ridge-regularized before
// return, matching the policy every other canonical-form value in this
// module follows.
func schurComplement(etaA, etaB *mat.VecDense, lamAA, lamAB, lamBA, lamBB *mat.Dense, ridge float64) (*mat.VecDense, *mat.Dense, error) {
	if etaB == nil || etaB.Len() == 0 {
		msgEta := mat.NewVecDense(etaA.Len(), nil)
		msgEta.CopyVec(etaA)
		msgLam := symmetrizeRidge(lamAA, ridge)

		return msgEta, msgLam, nil
	}

	lamBBInv, err := gaussian.InvertDense(lamBB)
	if err != nil {
		return nil, nil, fmt.Errorf("fgraph: schurComplement: %w", err)
	}

	var abBinv, abBinvBa mat.Dense
	abBinv.Mul(lamAB, lamBBInv)
	abBinvBa.Mul(&abBinv, lamBA)

	msgLamRaw := mat.NewDense(etaA.Len(), etaA.Len(), nil)
	msgLamRaw.Sub(lamAA, &abBinvBa)
	msgLam := symmetrizeRidge(msgLamRaw, ridge)

	var abBinvEtaB mat.VecDense
	abBinvEtaB.MulVec(&abBinv, etaB)
	msgEta := mat.NewVecDense(etaA.Len(), nil)
	msgEta.SubVec(etaA, &abBinvEtaB)

	return msgEta, msgLam, nil
}
