package fgraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/gaussian"
)

// DefaultHuberThreshold is ε_h, the Mahalanobis-distance cutoff below
// which Huber reweighting leaves the measurement precision untouched.
const DefaultHuberThreshold = 0.1

// Factor is one measurement/constraint tying together an ordered set
// of adjacent variables. Its adjacency order fixes the column layout
// of the externally-supplied Jacobian: column block i corresponds to
// the i'th entry of Adjacent().
type Factor struct {
	id      int
	adjVars []*VariableNode
	dims    []int
	offsets []int
	total   int

	measFn MeasurementFunc
	jacFn  JacobianFunc
	z      Vector
	r      *mat.Dense
	rInv   *mat.Dense
	args   []any

	huber bool
	epsH  float64

	inbox  map[int]*gaussian.GaussianState
	outbox map[int]*gaussian.GaussianState

	x0     []Vector
	etaF   *mat.VecDense
	lamF   *mat.Dense
	lamR   *mat.Dense
}

// NewFactor constructs a factor over adjacent (in the order the
// Jacobian's columns are laid out), with measurement function measFn,
// Jacobian function jacFn, observed measurement z and covariance r.
// huber enables adaptive Huber reweighting of r at ε_h=0.1; pass args
// through to measFn/jacFn unchanged on every evaluation.
//
// Registers itself with each variable in adjacent (so the graph that
// eventually owns them can resolve adjacency) but does not itself
// assign an id — that happens when the factor is added to a
// FactorGraph.
func NewFactor(adjacent []*VariableNode, measFn MeasurementFunc, r *mat.Dense, z Vector, jacFn JacobianFunc, huber bool, args ...any) (*Factor, error) {
	if len(adjacent) == 0 {
		return nil, ErrEmptyAdjacency
	}

	dims := make([]int, len(adjacent))
	for i, v := range adjacent {
		dims[i] = v.Dim()
	}
	offsets, total := blockOffsets(dims)

	rows, cols := r.Dims()
	if rows != cols || rows != len(z) {
		return nil, fmt.Errorf("fgraph: NewFactor R shape %dx%d vs len(z)=%d: %w", rows, cols, len(z), ErrDimensionMismatch)
	}

	rInv, err := gaussian.InvertDense(r)
	if err != nil {
		return nil, fmt.Errorf("fgraph: NewFactor: %w", err)
	}

	f := &Factor{
		id:      -1,
		adjVars: append([]*VariableNode(nil), adjacent...),
		dims:    dims,
		offsets: offsets,
		total:   total,
		measFn:  measFn,
		jacFn:   jacFn,
		z:       append(Vector(nil), z...),
		r:       r,
		rInv:    rInv,
		args:    args,
		huber:   huber,
		epsH:    DefaultHuberThreshold,
	}

	for _, v := range adjacent {
		v.adjFactors = append(v.adjFactors, f)
	}

	return f, nil
}

// ID returns the factor's graph-local id, or -1 if not yet added to a
// graph.
func (f *Factor) ID() int { return f.id }

// Adjacent returns the ordered adjacent variables.
func (f *Factor) Adjacent() []*VariableNode { return f.adjVars }

// R returns the measurement covariance the factor was constructed with.
func (f *Factor) R() Matrix { return f.r }

// EffectivePrecision returns the Huber-reweighted measurement precision
// Λ_R computed at the most recent relinearization, or nil before the
// first round. Equal to R⁻¹ whenever Huber is disabled or the residual
// sits inside the Huber band.
func (f *Factor) EffectivePrecision() Matrix { return f.lamR }

// LinearizationPoint returns the per-variable means x⁰ the factor was
// last linearized at, in adjacency order, or nil before the first
// round.
func (f *Factor) LinearizationPoint() []Vector { return f.x0 }

// SetHuberThreshold overrides ε_h (default 0.1). Intended for callers
// replicating a specific data set's tuning rather than everyday use.
func (f *Factor) SetHuberThreshold(eps float64) { f.epsH = eps }

// OutgoingMessage returns the message most recently sent to the
// variable with the given id, or false if no round has produced one
// yet (or variableID is not adjacent to f).
func (f *Factor) OutgoingMessage(variableID int) (*gaussian.GaussianState, bool) {
	msg, ok := f.outbox[variableID]

	return msg, ok
}

// relinearize is pass 1 of a synchronous round: it reads each adjacent
// variable's current inbox entry (not its global belief — relinearizing
// from the belief would double-count this factor's own prior
// contribution in a loopy graph), evaluates measFn/jacFn at that point,
// applies Huber reweighting to the measurement precision, and rebuilds
// the factor's local canonical form (η_f, Λ_f).
func (f *Factor) relinearize() error {
	x0 := make([]Vector, len(f.adjVars))
	for i, v := range f.adjVars {
		msg := f.inbox[v.id]
		mu, err := msg.ToMoments()
		if err != nil {
			return fmt.Errorf("fgraph: factor %d relinearize variable %d: %w", f.id, v.id, err)
		}
		x0[i] = make(Vector, v.Dim())
		for j := range x0[i] {
			x0[i][j] = mu.Mu.AtVec(j)
		}
	}
	f.x0 = x0

	predicted, err := f.measFn(x0, f.args...)
	if err != nil {
		return fmt.Errorf("fgraph: factor %d measurement closure: %w", f.id, err)
	}
	jac, err := f.jacFn(x0, f.args...)
	if err != nil {
		return fmt.Errorf("fgraph: factor %d jacobian closure: %w", f.id, err)
	}
	jr, jc := jac.Dims()
	if jr != len(f.z) || jc != f.total {
		return fmt.Errorf("fgraph: factor %d jacobian shape %dx%d vs z=%d adjacency=%d: %w", f.id, jr, jc, len(f.z), f.total, ErrDimensionMismatch)
	}

	residual := mat.NewVecDense(len(f.z), nil)
	for i := range f.z {
		residual.SetVec(i, f.z[i]-predicted[i])
	}

	lamR := f.huberWeightedPrecision(residual)
	f.lamR = lamR

	x0Flat := stackVectors(x0)
	var jx0 mat.VecDense
	jx0.MulVec(jac, x0Flat)
	var rPlusJx0 mat.VecDense
	rPlusJx0.AddVec(residual, &jx0)

	var jtLamR mat.Dense
	jtLamR.Mul(jac.T(), lamR)

	lamF := mat.NewDense(f.total, f.total, nil)
	lamF.Mul(&jtLamR, jac)
	f.lamF = symmetrizeRidge(lamF, gaussian.DefaultRidge)

	etaF := mat.NewVecDense(f.total, nil)
	etaF.MulVec(&jtLamR, &rPlusJx0)
	f.etaF = etaF

	return nil
}

// huberWeightedPrecision returns the effective measurement precision
// Λ_R for the current residual: R⁻¹ unchanged if the Mahalanobis
// distance m is within ε_h, shrunk by 2(ε_h·m−ε_h²/2)/m² otherwise.
func (f *Factor) huberWeightedPrecision(residual *mat.VecDense) *mat.Dense {
	if !f.huber {
		return f.rInv
	}

	var tmp mat.VecDense
	tmp.MulVec(f.rInv, residual)
	m2 := mat.Dot(residual, &tmp)
	if m2 <= 0 {
		return f.rInv
	}
	m := math.Sqrt(m2)
	if m <= f.epsH {
		return f.rInv
	}

	weight := 2 * (f.epsH*m - f.epsH*f.epsH/2) / m2
	rows, cols := f.rInv.Dims()
	weighted := mat.NewDense(rows, cols, nil)
	weighted.Scale(weight, f.rInv)

	return weighted
}

// computeOutgoingMessages is pass 2 of a synchronous round. For every
// adjacent variable a, it folds every *other* adjacent variable's
// current inbox message into (η_f,Λ_f) at that variable's own block,
// then Schur-complements out every block except a's, leaving the
// message to send to a. Stores the result in outbox[a.id].
func (f *Factor) computeOutgoingMessages() error {
	for k, a := range f.adjVars {
		etaPrime := mat.NewVecDense(f.total, nil)
		etaPrime.CopyVec(f.etaF)
		lamPrime := mat.NewDense(f.total, f.total, nil)
		lamPrime.Copy(f.lamF)

		for j, other := range f.adjVars {
			if j == k {
				continue
			}
			msg := f.inbox[other.id]
			addBlockVec(etaPrime, f.offsets[j], msg.Eta())
			addBlockMat(lamPrime, f.offsets[j], msg.Lam())
		}

		aIdx := contiguousRange(f.offsets[k], f.dims[k])
		bIdx := complementIndices(f.total, f.offsets[k], f.dims[k])

		etaA := gatherVec(etaPrime, aIdx)
		lamAA := gatherMat(lamPrime, aIdx, aIdx)

		var etaB *mat.VecDense
		var lamAB, lamBA, lamBB *mat.Dense
		if len(bIdx) > 0 {
			etaB = gatherVec(etaPrime, bIdx)
			lamAB = gatherMat(lamPrime, aIdx, bIdx)
			lamBA = gatherMat(lamPrime, bIdx, aIdx)
			lamBB = gatherMat(lamPrime, bIdx, bIdx)
		}

		msgEta, msgLam, err := schurComplement(etaA, etaB, lamAA, lamAB, lamBA, lamBB, gaussian.DefaultRidge)
		if err != nil {
			return fmt.Errorf("fgraph: factor %d message to variable %d: %w", f.id, a.id, err)
		}

		out := gaussian.New(f.dims[k])
		if err := out.SetCanonical(msgEta, msgLam); err != nil {
			return fmt.Errorf("fgraph: factor %d message to variable %d: %w", f.id, a.id, err)
		}
		f.outbox[a.id] = out
	}

	return nil
}

// contiguousRange returns [start, start+n).
func contiguousRange(start, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = start + i
	}

	return idx
}
