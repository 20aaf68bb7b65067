// Package errors provides structured errors for agent coordination.
//
// # Overview
//
// Failures in the pipeline carry a Kind that drives retry decisions.
// Kinds are assigned either explicitly at construction or heuristically
// by Classify, which inspects the error text for known markers. The
// substring heuristic mirrors how completion services and tools report
// failures as free text; callers that need precision should construct
// a *Error with an explicit kind instead of relying on Classify.
//
// # Retry semantics
//
// Timeout, Network, ToolFailure and ModelFailure are retryable by
// default. Validation and Unknown are not. The retry handler accepts
// its own allow-list, so these defaults only apply when the caller
// does not override them.
package errors
