package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearhaven/passage/internal/passerr"
)

const (
	defaultMaxInFlight = 4
	defaultMaxRetries  = 5
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

// Batcher partitions texts into provider-sized batches and embeds them.
//
// The output is positionally parallel to the input: vector i belongs to
// text i no matter how the input was partitioned or in which order batches
// completed. Failed batches retry with exponential backoff; once retries
// are exhausted the whole call fails rather than dropping chunks.
type Batcher struct {
	provider    Provider
	batchSize   int
	maxInFlight int
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *zap.Logger
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithMaxInFlight bounds how many batches may be embedding concurrently.
func WithMaxInFlight(n int) BatcherOption {
	return func(b *Batcher) {
		b.maxInFlight = n
	}
}

// WithMaxRetries sets how many times a failed batch is retried.
func WithMaxRetries(n int) BatcherOption {
	return func(b *Batcher) {
		b.maxRetries = n
	}
}

// WithRetryDelays sets the backoff base delay and its upper bound.
func WithRetryDelays(base, max time.Duration) BatcherOption {
	return func(b *Batcher) {
		b.baseDelay = base
		b.maxDelay = max
	}
}

// WithBatcherLogger sets the logger. Default is a no-op logger.
func WithBatcherLogger(logger *zap.Logger) BatcherOption {
	return func(b *Batcher) {
		b.logger = logger
	}
}

// NewBatcher creates a Batcher over the provider. batchSize is the
// provider's per-call item limit and must be at least 1.
func NewBatcher(provider Provider, batchSize int, opts ...BatcherOption) (*Batcher, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", passerr.ErrConfiguration)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", passerr.ErrConfiguration, batchSize)
	}
	b := &Batcher{
		provider:    provider,
		batchSize:   batchSize,
		maxInFlight: defaultMaxInFlight,
		maxRetries:  defaultMaxRetries,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxInFlight < 1 {
		return nil, fmt.Errorf("%w: max in-flight batches must be at least 1, got %d", passerr.ErrConfiguration, b.maxInFlight)
	}
	if b.maxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must not be negative, got %d", passerr.ErrConfiguration, b.maxRetries)
	}
	return b, nil
}

// Dimensions returns the provider's embedding dimension.
func (b *Batcher) Dimensions() int {
	return b.provider.Dimensions()
}

// EmbedAll embeds every text and returns the vectors in input order.
// Empty texts are rejected before any provider call is made.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", passerr.ErrValidation, i)
		}
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxInFlight)
	for start := 0; start < len(texts); start += b.batchSize {
		start := start
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := b.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end-1, err)
			}
			// Each goroutine owns a disjoint slice of results, so no lock.
			for i, vec := range vecs {
				results[start+i] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EmbedOne embeds a single text, typically a query.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *Batcher) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.retryDelay(attempt-1, lastErr)
			b.logger.Debug("retrying embedding batch",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		vecs, err := b.provider.Embed(ctx, batch)
		if err == nil {
			if len(vecs) != len(batch) {
				return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", passerr.ErrProvider, len(vecs), len(batch))
			}
			want := b.provider.Dimensions()
			for i, vec := range vecs {
				if len(vec) != want {
					return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", passerr.ErrProvider, i, len(vec), want)
				}
			}
			return vecs, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", b.maxRetries+1, lastErr)
}

// retryable reports whether the error is worth another attempt. Only
// provider faults (rate limits, server errors, network failures) retry;
// validation and configuration errors are wrong on every attempt, and a
// canceled context stays canceled.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, passerr.ErrProvider)
}

func (b *Batcher) retryDelay(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	delay := b.baseDelay << attempt
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}
	return delay
}
