// Package services holds the pure domain services of the order lifecycle.
//
// The package includes:
//   - TransitionValidator: role permissions and the forward-only status chain
//   - WaitTimeEstimator: queue wait estimate from recent preparation times
//   - ActiveView: which orders each role sees on its dashboard
//
// None of them performs I/O; handlers feed them snapshots read from the store.
package services
