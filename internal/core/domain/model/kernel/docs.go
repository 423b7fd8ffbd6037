// Package kernel holds the shared primitives of the order domain: identifiers and the clock
// that stamps lifecycle milestones. Both are immutable and safe for concurrent use.
package kernel
