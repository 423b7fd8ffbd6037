// Package errs holds the typed validation and lookup errors shared by the domain and the
// adapters. Each type carries the offending parameter and unwraps to a sentinel, so the
// HTTP layer can map a whole family with one errors.Is check.
package errs
