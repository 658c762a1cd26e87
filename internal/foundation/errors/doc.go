// Package errors provides the classified error primitives used across tails.
//
// Every failure the compile pipeline reports to a caller carries a category that
// decides how far it propagates:
//   - CategoryConfig and CategoryManifest stop startup entirely
//   - CategoryModule and CategoryPlugin abort the current file (and a full build)
//   - CategoryWatch is logged by the watch loop, which keeps running
//   - CategoryNetwork is retried by the remote fetcher before it becomes a module error
//
// Example usage:
//
//	err := errors.ModuleError("transpile failed").
//		WithContext("module", key).
//		WithCause(diagErr).
//		Build()
package errors
