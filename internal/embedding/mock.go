package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/pkg/utils"
)

// MockProvider is a deterministic in-process provider. Vectors derive from
// a hash of the text, so equal texts always embed equally and a chunk
// queried with its own embedding scores a similarity of 1. Call sizes are
// recorded so tests can assert batch partitioning.
type MockProvider struct {
	dimensions int

	mu        sync.Mutex
	callSizes []int
	failures  int
}

// NewMockProvider returns a provider with the given vector dimension.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockProvider{dimensions: dimensions}
}

// FailNext makes the next n Embed calls fail with a provider error.
func (p *MockProvider) FailNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = n
}

// Embed returns one deterministic unit vector per text.
func (p *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.callSizes = append(p.callSizes, len(texts))
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: injected failure", passerr.ErrProvider)
	}
	p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vector(text)
	}
	return out, nil
}

func (p *MockProvider) vector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := float64(h.Sum32())
	emb := make([]float32, p.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// CallSizes returns the recorded size of every Embed call so far.
func (p *MockProvider) CallSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sizes := make([]int, len(p.callSizes))
	copy(sizes, p.callSizes)
	return sizes
}

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error {
	return nil
}
