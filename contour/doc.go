// Package contour implements dynamic contour fitting on top of fgraph:
// a chain of VariableNode positions tracing an unknown 2D curve, fit to
// a cloud of noisy point measurements by Gaussian belief propagation,
// with a topology manager that births new nodes where the fit is
// locally poor, kills nodes that carry no support, and merges nodes
// that have become collinear — all driven purely by per-segment
// residual statistics and posterior covariance, never by a fixed node
// count.
//
// A Manager owns exactly one underlying *fgraph.FactorGraph at a time.
// Each call to NextFrame relaxes that graph's beliefs against a new
// measurement set, inspects the result, and — if birth/kill/merge
// changed the node count — rebuilds a fresh FactorGraph over the
// mutated node list and relaxes again, repeating until the topology
// stabilizes or a per-frame cap is hit.
package contour
