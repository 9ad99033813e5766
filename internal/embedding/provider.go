// Package embedding obtains vector embeddings for chunk and query text.
//
// A Provider turns one bounded batch of texts into vectors. The Batcher sits
// on top: it partitions arbitrary input into provider-sized batches, runs
// them with bounded concurrency and retries, and guarantees the output
// vector at position i always belongs to the input text at position i.
package embedding

import "context"

// Provider produces one embedding vector per input text in a single call.
// Implementations return vectors in input order. Callers must respect the
// provider's per-call batch limit; the Batcher enforces it.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
