// Package passerr defines the error kinds shared across the ingestion and
// retrieval pipeline. Callers classify failures with errors.Is; sites that
// raise them wrap with fmt.Errorf("...: %w", Err...) to add context.
package passerr

import "errors"

var (
	// ErrConfiguration marks invalid configuration, such as a sentence
	// overlap that is not smaller than the window size. Fatal at startup,
	// never clamped or corrected silently.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrProvider marks an embedding provider or store call that failed
	// after retries were exhausted. It aborts the ingestion run for the
	// affected batch; earlier committed generations stay intact.
	ErrProvider = errors.New("provider failure")

	// ErrValidation marks input rejected before any external call, such as
	// an empty string submitted for embedding or an unsupported source file.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound marks a lookup of a specific document that does not
	// exist. An empty retrieval result is not an error and never carries it.
	ErrNotFound = errors.New("not found")
)
