package contour

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/fgraph"
	"github.com/beliefmesh/gbp/gaussian"
)

// seedPriorVariance is the broad per-axis variance every seed node
// starts with — wide enough that the first frame's measurements
// dominate instead of fighting an opinionated prior.
const seedPriorVariance = 1000.0

// Manager owns a chain of VariableNode positions tracing an unknown
// contour and relaxes them against successive measurement frames,
// mutating the chain's length between frames via birth/kill/merge.
type Manager struct {
	cfg   Config
	log   zerolog.Logger
	dim   int
	nodes []*fgraph.VariableNode
	graph *fgraph.FactorGraph

	seeded bool // false until the first NextFrame call has run
}

// NewManager seeds an initial chain of cfg.NumInitialNodes nodes
// interpolated between seedA and seedB at (i+1)/(n+1) spacing
// (inclusive of neither endpoint), each with a broad, uncorrelated
// prior. NumInitialNodes=1 seeds the degenerate
// single-node start, which NextFrame's first topology pass will split
// perpendicular to its prior→posterior displacement.
func NewManager(seedA, seedB fgraph.Vector, opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.NumInitialNodes < 1 {
		return nil, ErrTooFewSeedNodes
	}
	if len(seedA) != len(seedB) {
		return nil, fmt.Errorf("contour: seedA/seedB dimension mismatch: %d vs %d", len(seedA), len(seedB))
	}
	dim := len(seedA)

	nodes := make([]*fgraph.VariableNode, cfg.NumInitialNodes)
	n := cfg.NumInitialNodes
	for i := 0; i < n; i++ {
		t := float64(i+1) / float64(n+1)
		pos := lerp(seedA, seedB, t)
		prior := seedPrior(dim, pos)
		nodes[i] = fgraph.NewVariable(dim, prior)
	}

	return &Manager{cfg: cfg, dim: dim, nodes: nodes}, nil
}

// WithLogger attaches a zerolog.Logger the manager uses for sparse
// per-frame birth/death/merge diagnostics.
func (m *Manager) WithLogger(l zerolog.Logger) *Manager {
	m.log = l

	return m
}

// Nodes returns the manager's current chain, in order. The slice and
// its contents are owned by the manager; callers must not mutate them.
func (m *Manager) Nodes() []*fgraph.VariableNode { return m.nodes }

// Graph returns the FactorGraph produced by the most recent NextFrame
// call, or nil before the first call.
func (m *Manager) Graph() *fgraph.FactorGraph { return m.graph }

// NextFrame relaxes the current chain against measurements: resets
// every surviving node's belief uncertainty (skipped on the very first
// call, since a freshly seeded node is already uncertain), then
// repeatedly regenerates line-measurement factors and fits until a
// birth/kill/merge pass reports zero topology changes or the
// per-manager frame cap is reached. Returns the total synchronous
// rounds run across every fit in this call.
func (m *Manager) NextFrame(ctx context.Context, measurements []fgraph.Vector) (int, error) {
	if len(measurements) == 0 {
		return 0, ErrNoMeasurements
	}

	if m.seeded {
		for _, v := range m.nodes {
			v.Reset(m.cfg.TransitionNoise)
		}
	}
	m.seeded = true

	totalRounds := 0
	changed := 1
	for frame := 0; changed != 0 && frame < m.cfg.frameCap; frame++ {
		factors := m.buildFactors(measurements)
		fg := fgraph.NewFactorGraph(
			m.nodes, factors,
			fgraph.WithMaxIterations(m.cfg.MaxIterationsPerMeasurement),
			fgraph.WithLogger(m.log),
		)

		rounds, err := fg.Fit(ctx)
		totalRounds += rounds
		if err != nil && !errors.Is(err, fgraph.ErrIterationCapExceeded) {
			return totalRounds, err
		}
		m.graph = fg

		changed = m.applyTopologyChanges(measurements)
		m.log.Debug().
			Int("frame_pass", frame).
			Int("rounds", rounds).
			Int("nodes", len(m.nodes)).
			Int("components_changed", changed).
			Msg("contour: topology pass complete")
	}

	return totalRounds, nil
}

// buildFactors clears every surviving node's stale adjacency and
// constructs one line-measurement factor per measurement, bound to the
// 2-or-3-node adjacency lineAdjacency selects for it.
func (m *Manager) buildFactors(measurements []fgraph.Vector) []*fgraph.Factor {
	for _, v := range m.nodes {
		v.ResetAdjacency()
	}

	if len(m.nodes) < 2 {
		return nil
	}

	factors := make([]*fgraph.Factor, 0, len(measurements))
	for _, meas := range measurements {
		adjacent, endpoints := lineAdjacency(m.nodes, meas)
		r := mat.NewDense(1, 1, []float64{m.cfg.LineMeasurementNoise})
		f, err := fgraph.NewFactor(adjacent, LineMeasurement, r, fgraph.Vector{0}, LineMeasurementJacobian, m.cfg.UseHuber, meas, endpoints)
		if err != nil {
			continue // malformed factor (e.g. degenerate adjacency); skip this measurement this frame
		}
		if m.cfg.UseHuber {
			f.SetHuberThreshold(m.cfg.LineFactorHuberDistance)
		}
		factors = append(factors, f)
	}

	return factors
}

// lineAdjacency selects the 2-or-3 chain nodes a measurement point's
// line factor binds to and flags which of those sit at the contour's
// physical ends: find the node nearest the point, clamp its index to
// >=1 so a node before it always exists, and include the node after
// it only if one exists short of the chain's last index. The returned
// endpoint slice has exactly one flag per adjacent node.
func lineAdjacency(nodes []*fgraph.VariableNode, p fgraph.Vector) (adjacent []*fgraph.VariableNode, endpoints []bool) {
	best, bestDist := 0, math.Inf(1)
	for i, v := range nodes {
		if d := norm(sub(p, v.Mean())); d < bestDist {
			best, bestDist = i, d
		}
	}
	minIdx := best
	if minIdx < 1 {
		minIdx = 1
	}
	last := len(nodes) - 1

	adjacent = []*fgraph.VariableNode{nodes[minIdx-1], nodes[minIdx]}
	endpoints = []bool{minIdx-1 == 0, minIdx == last}
	if last > minIdx {
		adjacent = append(adjacent, nodes[minIdx+1])
		endpoints = append(endpoints, minIdx+1 == last)
	}

	return adjacent, endpoints
}

// segments returns the Line through every consecutive pair of nodes,
// in the node chain's current order.
func (m *Manager) segments() []*Line {
	segs := make([]*Line, 0, max(len(m.nodes)-1, 0))
	for i := 0; i < len(m.nodes)-1; i++ {
		a, b := m.nodes[i].Mean(), m.nodes[i+1].Mean()
		segs = append(segs, NewLine(a, sub(b, a)))
	}

	return segs
}

func nearestSegment(segs []*Line, p fgraph.Vector) int {
	best, bestDist := -1, math.Inf(1)
	for i, l := range segs {
		d := l.DistanceToPoint(p)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return best
}

// applyTopologyChanges inspects the just-fit graph's per-segment
// residual statistics and posterior covariances and performs at most
// one kind of structural change (split, kill, or birth) per call,
// returning the number of nodes affected. Doing one kind of change at
// a time keeps segment/node indices valid across the mutation; the
// caller's loop re-fits and re-inspects before the next pass.
func (m *Manager) applyTopologyChanges(measurements []fgraph.Vector) int {
	if len(m.nodes) == 1 {
		m.splitSingleNode()

		return 1
	}
	if len(m.nodes) < 2 {
		return 0
	}

	segs := m.segments()
	ssr, n := assignResiduals(segs, measurements)

	survivors := make([]*fgraph.VariableNode, 0, len(m.nodes))
	killed := 0
	for i, v := range m.nodes {
		if m.shouldKill(i, v, n) && len(m.nodes)-killed > 1 {
			killed++
			continue
		}
		survivors = append(survivors, v)
	}
	if killed > 0 {
		m.nodes = survivors
		for _, v := range m.nodes {
			v.ResetAdjacency()
		}

		return killed
	}

	next := make([]*fgraph.VariableNode, 0, len(m.nodes))
	born := 0
	for i, v := range m.nodes {
		next = append(next, v)
		if i >= len(segs) {
			continue
		}
		if n[i] == 0 {
			continue
		}
		variance := ssr[i] / float64(n[i])
		if variance > m.cfg.BirthLineVariance {
			c1, c2 := m.interpolateBirth(v, m.nodes[i+1])
			next = append(next, c1, c2)
			born += 2
		}
	}
	m.nodes = next
	for _, v := range m.nodes {
		v.ResetAdjacency()
	}

	return born
}

// shouldKill decides whether node i should be removed: an endpoint
// carrying at most one assigned measurement (effectively unsupported),
// a posterior covariance too large to trust, or a near-collinear
// triplet with its neighbors (this node adds no shape information).
func (m *Manager) shouldKill(i int, v *fgraph.VariableNode, segmentCounts []int) bool {
	isEndpoint := i == 0 || i == len(m.nodes)-1
	if isEndpoint {
		segIdx := i
		if i != 0 {
			segIdx = len(segmentCounts) - 1
		}
		if segIdx >= 0 && segIdx < len(segmentCounts) && segmentCounts[segIdx] <= 1 {
			return true
		}
	}

	if moments := v.Moments(); moments != nil {
		if frobeniusNorm(moments.Sigma) > m.cfg.DeathNodeSigma {
			return true
		}
	}

	if i > 0 && i < len(m.nodes)-1 {
		a, c := m.nodes[i-1].Mean(), m.nodes[i+1].Mean()
		line := NewLine(a, sub(c, a))
		if line.DistanceToPoint(v.Mean()) < m.cfg.LineMergeResidual {
			return true
		}
	}

	return false
}

// interpolateBirth inserts two new nodes at 1/3 and 2/3 along the
// segment from a to b, each seeded with the canonical average of a
// and b's priors repositioned to its interpolated location.
func (m *Manager) interpolateBirth(a, b *fgraph.VariableNode) (*fgraph.VariableNode, *fgraph.VariableNode) {
	muA, muB := a.Mean(), b.Mean()
	prior := averageCanonical(a.Prior(), b.Prior())

	pos1 := lerp(muA, muB, 1.0/3.0)
	pos2 := lerp(muA, muB, 2.0/3.0)

	n1 := fgraph.NewVariable(m.dim, repositionedPrior(prior, pos1))
	n2 := fgraph.NewVariable(m.dim, repositionedPrior(prior, pos2))

	return n1, n2
}

// splitSingleNode handles the degenerate single-node start: the lone
// node splits into two, offset perpendicular to its prior→posterior
// displacement by its posterior x-axis standard deviation, each child
// seeded with a prior positioned at its new location under the old
// node's posterior covariance — the only locally available uncertainty
// estimate worth carrying into the next fit.
func (m *Manager) splitSingleNode() {
	old := m.nodes[0]
	moments := old.Moments()
	if moments == nil {
		return // no successful posterior yet; nothing to split around
	}
	priorMoments, err := old.Prior().ToMoments()
	if err != nil {
		return
	}

	postMean := make(fgraph.Vector, m.dim)
	priorMean := make(fgraph.Vector, m.dim)
	for i := 0; i < m.dim; i++ {
		postMean[i] = moments.Mu.AtVec(i)
		priorMean[i] = priorMoments.Mu.AtVec(i)
	}
	displacement := sub(postMean, priorMean)

	// A single node never has a line-measurement factor built for it
	// (buildFactors requires at least 2 nodes), so its first fit leaves
	// the belief exactly at the prior and displacement at the zero
	// vector; rotating a zero vector 90° is still zero, so fall back to
	// a canonical split axis rather than collapsing both children onto
	// the same point.
	ortho := make(fgraph.Vector, m.dim)
	switch {
	case m.dim >= 2 && norm(displacement) > 0:
		ortho[0], ortho[1] = displacement[1], -displacement[0]
	case m.dim >= 2:
		ortho[1] = 1
	default:
		ortho[0] = 1
	}
	if l := norm(ortho); l > 0 {
		for i := range ortho {
			ortho[i] /= l
		}
	}
	stddev := math.Sqrt(moments.Sigma.At(0, 0))
	for i := range ortho {
		ortho[i] *= stddev
	}

	pos1 := make(fgraph.Vector, m.dim)
	pos2 := make(fgraph.Vector, m.dim)
	for i := range pos1 {
		pos1[i] = postMean[i] + ortho[i]
		pos2[i] = postMean[i] - ortho[i]
	}

	prior1 := gaussian.New(m.dim)
	_ = prior1.SetFromMoments(mat.NewVecDense(m.dim, pos1), moments.Sigma)
	prior2 := gaussian.New(m.dim)
	_ = prior2.SetFromMoments(mat.NewVecDense(m.dim, pos2), moments.Sigma)

	m.nodes = []*fgraph.VariableNode{
		fgraph.NewVariable(m.dim, prior1),
		fgraph.NewVariable(m.dim, prior2),
	}
}

func assignResiduals(segs []*Line, measurements []fgraph.Vector) (ssr []float64, n []int) {
	ssr = make([]float64, len(segs))
	n = make([]int, len(segs))
	for _, meas := range measurements {
		idx := nearestSegment(segs, meas)
		if idx < 0 {
			continue
		}
		d := segs[idx].DistanceToPoint(meas)
		ssr[idx] += d * d
		n[idx]++
	}

	return ssr, n
}

func seedPrior(dim int, mean fgraph.Vector) *gaussian.GaussianState {
	sigma := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		sigma.Set(i, i, seedPriorVariance)
	}
	g := gaussian.New(dim)
	_ = g.SetFromMoments(mat.NewVecDense(dim, mean), sigma)

	return g
}

// averageCanonical returns a fresh GaussianState holding the average
// of a and b's (η,Λ).
func averageCanonical(a, b *gaussian.GaussianState) *gaussian.GaussianState {
	dim := a.Dim()
	eta := mat.NewVecDense(dim, nil)
	eta.AddVec(a.Eta(), b.Eta())
	eta.ScaleVec(0.5, eta)
	lam := mat.NewDense(dim, dim, nil)
	lam.Add(a.Lam(), b.Lam())
	lam.Scale(0.5, lam)

	g := gaussian.New(dim)
	_ = g.SetCanonical(eta, lam)

	return g
}

// repositionedPrior returns a copy of template with η recomputed for a
// different mean, keeping Λ (and therefore the uncertainty shape)
// unchanged: η = Λ·pos.
func repositionedPrior(template *gaussian.GaussianState, pos fgraph.Vector) *gaussian.GaussianState {
	dim := template.Dim()
	posVec := mat.NewVecDense(dim, pos)
	var eta mat.VecDense
	eta.MulVec(template.Lam(), posVec)

	g := gaussian.New(dim)
	_ = g.SetCanonical(&eta, template.Lam())

	return g
}

func frobeniusNorm(m *mat.Dense) float64 {
	r, c := m.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += m.At(i, j) * m.At(i, j)
		}
	}

	return math.Sqrt(sum)
}

func lerp(a, b fgraph.Vector, t float64) fgraph.Vector {
	out := make(fgraph.Vector, len(a))
	for i := range out {
		out[i] = a[i] + t*(b[i]-a[i])
	}

	return out
}
