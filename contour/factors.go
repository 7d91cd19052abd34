package contour

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/beliefmesh/gbp/fgraph"
)

// jacobianFiniteDiffStep is the central-difference step used by
// LineMeasurementJacobian, the one factor in this package without an
// analytic Jacobian.
const jacobianFiniteDiffStep = 1e-6

// DistanceMeasurement is h(a,b) = targetDistance - ‖a-b‖, a factor
// pulling two adjacent nodes to a fixed target separation. args[0]
// must be the target distance (float64).
func DistanceMeasurement(means []fgraph.Vector, args ...any) (fgraph.Vector, error) {
	if len(means) != 2 {
		return nil, fmt.Errorf("contour: DistanceMeasurement wants 2 adjacent variables, got %d", len(means))
	}
	target, err := floatArg(args, 0)
	if err != nil {
		return nil, err
	}

	return fgraph.Vector{target - norm(sub(means[0], means[1]))}, nil
}

// DistanceJacobian is the analytic Jacobian of DistanceMeasurement.
func DistanceJacobian(means []fgraph.Vector, _ ...any) (fgraph.Matrix, error) {
	if len(means) != 2 {
		return nil, fmt.Errorf("contour: DistanceJacobian wants 2 adjacent variables, got %d", len(means))
	}
	diff := sub(means[0], means[1])
	length := norm(diff)
	d := len(means[0])
	jac := mat.NewDense(1, 2*d, nil)
	if length == 0 {
		return jac, nil
	}
	for i := 0; i < d; i++ {
		jac.Set(0, i, -diff[i]/length)
		jac.Set(0, d+i, diff[i]/length)
	}

	return jac, nil
}

// SmoothingMeasurement is h(a,b,c) = ‖a + 0.5(c-a) - b‖, the
// midpoint-distance smoothing factor between three consecutive contour
// nodes: it penalizes b for deviating from the midpoint of its
// neighbors a and c.
func SmoothingMeasurement(means []fgraph.Vector, _ ...any) (fgraph.Vector, error) {
	if len(means) != 3 {
		return nil, fmt.Errorf("contour: SmoothingMeasurement wants 3 adjacent variables, got %d", len(means))
	}
	a, b, c := means[0], means[1], means[2]
	midpoint := make(fgraph.Vector, len(a))
	for i := range midpoint {
		midpoint[i] = a[i] + 0.5*(c[i]-a[i])
	}

	return fgraph.Vector{norm(sub(midpoint, b))}, nil
}

// SmoothingJacobian is the analytic Jacobian of SmoothingMeasurement:
// writing diff = 0.5a+0.5c-b and u = diff/‖diff‖ (zero if diff is
// zero), ∂h/∂a = 0.5u, ∂h/∂b = -u, ∂h/∂c = 0.5u.
func SmoothingJacobian(means []fgraph.Vector, _ ...any) (fgraph.Matrix, error) {
	if len(means) != 3 {
		return nil, fmt.Errorf("contour: SmoothingJacobian wants 3 adjacent variables, got %d", len(means))
	}
	a, b, c := means[0], means[1], means[2]
	d := len(a)
	diff := make(fgraph.Vector, d)
	for i := 0; i < d; i++ {
		diff[i] = 0.5*a[i] + 0.5*c[i] - b[i]
	}
	length := norm(diff)
	unit := make(fgraph.Vector, d)
	if length > 0 {
		for i := range unit {
			unit[i] = diff[i] / length
		}
	}

	jac := mat.NewDense(1, 3*d, nil)
	for i := 0; i < d; i++ {
		jac.Set(0, i, 0.5*unit[i])
		jac.Set(0, d+i, -unit[i])
		jac.Set(0, 2*d+i, 0.5*unit[i])
	}

	return jac, nil
}

// InterpolatedMeasurement is h(a,b) = (1-t)·a + t·b for two 1-D height
// nodes bracketing a point measurement, with args[0] the interpolation
// weight t ∈ [0,1] of the measured point's position between the two
// nodes. The 1-D contour-fitting demo splits each point measurement
// between its bracketing nodes this way.
func InterpolatedMeasurement(means []fgraph.Vector, args ...any) (fgraph.Vector, error) {
	if len(means) != 2 {
		return nil, fmt.Errorf("contour: InterpolatedMeasurement wants 2 adjacent variables, got %d", len(means))
	}
	if len(means[0]) != 1 || len(means[1]) != 1 {
		return nil, fmt.Errorf("contour: InterpolatedMeasurement wants 1-D variables, got %d and %d", len(means[0]), len(means[1]))
	}
	t, err := floatArg(args, 0)
	if err != nil {
		return nil, err
	}

	return fgraph.Vector{(1-t)*means[0][0] + t*means[1][0]}, nil
}

// InterpolatedJacobian is the analytic Jacobian of
// InterpolatedMeasurement: ∂h/∂a = 1-t, ∂h/∂b = t.
func InterpolatedJacobian(means []fgraph.Vector, args ...any) (fgraph.Matrix, error) {
	if len(means) != 2 {
		return nil, fmt.Errorf("contour: InterpolatedJacobian wants 2 adjacent variables, got %d", len(means))
	}
	t, err := floatArg(args, 0)
	if err != nil {
		return nil, err
	}

	return mat.NewDense(1, 2, []float64{1 - t, t}), nil
}

// lineSegment is one a→b edge within a 2-or-3-node line-measurement
// factor's adjacency. clampStart/clampEnd mark whether that endpoint
// is one of the contour's physical ends — a physical end clamps the
// projection so the residual never treats positions past the contour's
// actual tip as if the line extended further; an interior joint is
// left unclamped so neighboring segments can slide smoothly against
// one another.
type lineSegment struct {
	a, b                 fgraph.Vector
	clampStart, clampEnd bool
}

func (s lineSegment) distanceTo(p fgraph.Vector) float64 {
	dir := sub(s.b, s.a)
	line := NewLine(s.a, dir)
	if !s.clampStart && !s.clampEnd {
		return line.DistanceToPoint(p)
	}

	denom := dot(dir, dir)
	t := 0.0
	if denom > 0 {
		t = dot(sub(p, s.a), dir) / denom
	}
	if s.clampStart && t < 0 {
		return norm(sub(s.a, p))
	}
	if s.clampEnd && t > 1 {
		return norm(sub(s.b, p))
	}

	return line.DistanceToPoint(p)
}

// buildLineSegments turns a 2-or-3-node adjacency plus its per-node
// endpoint flags into the one or two consecutive edges a line-
// measurement factor projects its point onto.
func buildLineSegments(means []fgraph.Vector, endpoints []bool) []lineSegment {
	segs := make([]lineSegment, 0, len(means)-1)
	for i := 0; i+1 < len(means); i++ {
		segs = append(segs, lineSegment{a: means[i], b: means[i+1], clampStart: endpoints[i], clampEnd: endpoints[i+1]})
	}

	return segs
}

// LineMeasurement is h = distance from the fixed measurement point
// (args[0]) to whichever of its one-or-two candidate edges (args[1],
// the per-node endpoint flags) lies nearest — the factor that pulls a
// contour segment toward the points assigned to it. Binds the 2-or-3
// consecutive chain nodes nearest the point (the adjacency the
// manager's factor builder selects).
func LineMeasurement(means []fgraph.Vector, args ...any) (fgraph.Vector, error) {
	if len(means) < 2 || len(means) > 3 {
		return nil, fmt.Errorf("contour: LineMeasurement wants 2 or 3 adjacent variables, got %d", len(means))
	}
	m, err := vectorArg(args, 0)
	if err != nil {
		return nil, err
	}
	endpoints, err := boolSliceArg(args, 1)
	if err != nil {
		return nil, err
	}
	if len(endpoints) != len(means) {
		return nil, fmt.Errorf("contour: LineMeasurement endpoint flags length %d != adjacency %d", len(endpoints), len(means))
	}

	best := math.Inf(1)
	for _, s := range buildLineSegments(means, endpoints) {
		if d := s.distanceTo(m); d < best {
			best = d
		}
	}

	return fgraph.Vector{best}, nil
}

// LineMeasurementJacobian is a central-finite-difference Jacobian of
// LineMeasurement. The min-over-segments residual has no single closed
// form across the clamped/unclamped cases, so this factor differences
// the measurement directly; it is still supplied to fgraph as an
// ordinary JacobianFunc closure.
func LineMeasurementJacobian(means []fgraph.Vector, args ...any) (fgraph.Matrix, error) {
	if len(means) < 2 || len(means) > 3 {
		return nil, fmt.Errorf("contour: LineMeasurementJacobian wants 2 or 3 adjacent variables, got %d", len(means))
	}
	d := len(means[0])
	jac := mat.NewDense(1, len(means)*d, nil)
	for i := 0; i < len(means); i++ {
		for k := 0; k < d; k++ {
			plusMeans := cloneMeans(means)
			plusMeans[i][k] += jacobianFiniteDiffStep
			plus, err := LineMeasurement(plusMeans, args...)
			if err != nil {
				return nil, err
			}
			minusMeans := cloneMeans(means)
			minusMeans[i][k] -= jacobianFiniteDiffStep
			minus, err := LineMeasurement(minusMeans, args...)
			if err != nil {
				return nil, err
			}
			jac.Set(0, i*d+k, (plus[0]-minus[0])/(2*jacobianFiniteDiffStep))
		}
	}

	return jac, nil
}

func cloneMeans(means []fgraph.Vector) []fgraph.Vector {
	out := make([]fgraph.Vector, len(means))
	for i, m := range means {
		out[i] = append(fgraph.Vector(nil), m...)
	}

	return out
}

func floatArg(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("contour: missing float arg at index %d", i)
	}
	v, ok := args[i].(float64)
	if !ok {
		return 0, fmt.Errorf("contour: arg %d is not a float64", i)
	}

	return v, nil
}

func vectorArg(args []any, i int) (fgraph.Vector, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("contour: missing vector arg at index %d", i)
	}
	v, ok := args[i].(fgraph.Vector)
	if !ok {
		return nil, fmt.Errorf("contour: arg %d is not a Vector", i)
	}

	return v, nil
}

func boolSliceArg(args []any, i int) ([]bool, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("contour: missing bool slice arg at index %d", i)
	}
	v, ok := args[i].([]bool)
	if !ok {
		return nil, fmt.Errorf("contour: arg %d is not a []bool", i)
	}

	return v, nil
}
