// Package order holds the Order aggregate of a restaurant's order lifecycle.
//
// The package includes:
//   - Order: identity, items, payment snapshot, status, rider and milestone timestamps
//   - Status: the forward-only chain new -> preparing -> ready_for_pickup -> out_for_delivery -> delivered,
//     plus cancelled from any non-terminal status
//   - Predicate and Change: the guard and column set of a conditional write
//   - Filter: the read side used by queries, the estimator and the polling event source
//
// Orders are never mutated in place by application code. A handler loads a snapshot,
// validates the requested move, and asks the store to apply a Change only where a
// Predicate still holds; Apply mirrors that write for in-memory stores and tests.
package order
