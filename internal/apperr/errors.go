// Package apperr defines the error taxonomy shared by the registry,
// dispatcher, poller and transport layers (spec §7). Call sites wrap a
// sentinel with fmt.Errorf("...: %w", Sentinel) so errors.Is still
// resolves to the right HTTP status / gRPC code at the transport edge.
package apperr

import "errors"

var (
	// ErrBadInput marks malformed JSON or a shape/type mismatch in a
	// ModelInput. Surfaced as 400 / INVALID_ARGUMENT.
	ErrBadInput = errors.New("bad input")

	// ErrNotFound marks an unknown model name. Surfaced as 404 / NOT_FOUND.
	ErrNotFound = errors.New("model not found")

	// ErrAlreadyPresent marks a duplicate add. Surfaced as 409 / ALREADY_EXISTS.
	ErrAlreadyPresent = errors.New("model already present")

	// ErrLoadError marks a fetch, unpack or native-load failure. Surfaced
	// as 500 for management calls; logged and skipped by the poller and
	// startup loader.
	ErrLoadError = errors.New("load error")

	// ErrInferenceFailure marks a native predict failure. Surfaced as 500.
	ErrInferenceFailure = errors.New("inference failure")

	// ErrDeadline marks a request-scoped timeout while awaiting a worker
	// pool slot or a worker's result. Surfaced as 504. The worker itself
	// keeps running.
	ErrDeadline = errors.New("deadline exceeded")

	// ErrFatal marks a configuration or store-unreachable failure at
	// startup. The process exits non-zero.
	ErrFatal = errors.New("fatal startup error")
)

// Is reports whether err wraps target anywhere in its chain. Thin
// wrapper kept so call sites don't need to import "errors" directly
// just to dispatch on the taxonomy.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
