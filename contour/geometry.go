package contour

import (
	"math"

	"github.com/beliefmesh/gbp/fgraph"
)

// Line is the infinite line through a support point in a given
// direction, used to assign measurements to the nearest contour
// segment and to compute the line-measurement factor's residual.
// Operates on fgraph.Vector rather than a fixed 2-D type so the same
// code serves any dimensionality the caller's variable nodes use.
type Line struct {
	support   fgraph.Vector
	direction fgraph.Vector
	dirDotDir float64
}

// NewLine constructs a line through support in direction. direction
// need not be unit length.
func NewLine(support, direction fgraph.Vector) *Line {
	dd := dot(direction, direction)

	return &Line{support: support, direction: direction, dirDotDir: dd}
}

// DistanceToPoint returns the Euclidean distance from p to its
// orthogonal projection onto the line.
func (l *Line) DistanceToPoint(p fgraph.Vector) float64 {
	proj := l.Project(p)

	return norm(sub(proj, p))
}

// Project returns the orthogonal projection of p onto the line.
func (l *Line) Project(p fgraph.Vector) fgraph.Vector {
	if l.dirDotDir == 0 {
		return append(fgraph.Vector(nil), l.support...)
	}
	m := sub(p, l.support)
	t := dot(m, l.direction) / l.dirDotDir
	out := make(fgraph.Vector, len(l.support))
	for i := range out {
		out[i] = l.support[i] + t*l.direction[i]
	}

	return out
}

func dot(a, b fgraph.Vector) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}

	return s
}

func sub(a, b fgraph.Vector) fgraph.Vector {
	out := make(fgraph.Vector, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}

	return out
}

func norm(v fgraph.Vector) float64 {
	return math.Sqrt(dot(v, v))
}
