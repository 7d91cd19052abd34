// Package fgraph implements loopy Gaussian belief propagation over a
// factor graph held entirely in canonical (information) form.
//
// A FactorGraph owns a flat collection of VariableNode and Factor
// values, cross-referenced only by small integer ids assigned by the
// graph itself — never by raw pointer — so that topology mutation
// (birth/kill/merge, see the contour package) never leaves a dangling
// reference behind. Each SynchronousIteration performs three strictly
// ordered passes:
//
//  1. every factor relinearizes at its inbox means and recomputes its
//     local information form, applying an adaptive Huber reweight to
//     the measurement precision if enabled;
//  2. every factor marginalizes its local form against the other
//     variables' messages (a Schur complement) to produce one outgoing
//     message per adjacent variable;
//  3. every variable folds its incoming messages into its belief and
//     emits the belief-minus-message back to each adjacent factor.
//
// Pass 1 and 2 read only the inbox state left by the previous round's
// pass 3, so the three passes can each be parallelized across
// factors/variables without any lock beyond a barrier between passes —
// see Options.Parallel.
//
// Complexity:
//
//   - Time: O(rounds · (Σ_f d_f³ + Σ_v d_v³)) where d_f is a factor's
//     total adjacent dimension (the Schur complement inverts a
//     (d_f-d_a)×(d_f-d_a) block per adjacent variable a) and d_v is a
//     variable's dimension (belief inversion for the cached moments).
//   - Space: O(Σ_f d_f² + Σ_v d_v²) for cached local forms and beliefs.
package fgraph
