package contour_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beliefmesh/gbp/contour"
	"github.com/beliefmesh/gbp/fgraph"
)

// TestLineDistanceToPoint asserts the distance from a point directly
// above the midpoint of a horizontal line equals its vertical offset.
func TestLineDistanceToPoint(t *testing.T) {
	l := contour.NewLine(fgraph.Vector{0, 0.5}, fgraph.Vector{1, 0})
	d := l.DistanceToPoint(fgraph.Vector{0.5, 0.8})
	assert.InDelta(t, 0.3, d, 1e-9)
}

// TestLineProjectOntoDegenerateDirection asserts a zero-length
// direction projects every point onto the support point itself rather
// than dividing by zero.
func TestLineProjectOntoDegenerateDirection(t *testing.T) {
	l := contour.NewLine(fgraph.Vector{1, 1}, fgraph.Vector{0, 0})
	p := l.Project(fgraph.Vector{5, -3})
	assert.InDelta(t, 1, p[0], 1e-12)
	assert.InDelta(t, 1, p[1], 1e-12)
}

// TestLineProjectOntoAxisAligned asserts projection onto a pure
// horizontal line zeroes out the y displacement only.
func TestLineProjectOntoAxisAligned(t *testing.T) {
	l := contour.NewLine(fgraph.Vector{0, 0}, fgraph.Vector{1, 0})
	p := l.Project(fgraph.Vector{3, 7})
	assert.InDelta(t, 3, p[0], 1e-9)
	assert.InDelta(t, 0, p[1], 1e-9)
}
