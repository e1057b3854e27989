// Package errors provides standardized error handling patterns for the
// indexer gateway.
//
// # Overview
//
// The package implements a three-class error classification: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop processing). Classification lets callers decide on
// retries and degradation without matching error strings ad hoc.
//
// The classification integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if conn == nil {
//	    return errors.ErrNoConnection
//	}
//
// Wrap errors with component context:
//
//	if err := cfg.Validate(); err != nil {
//	    return errors.WrapInvalid(err, "Config", "Load", "validation")
//	}
//
// Check classification when handling failures:
//
//	if errors.IsTransient(err) {
//	    // safe to retry upstream
//	}
package errors
