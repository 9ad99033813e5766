package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/passerr"
)

// Dimensions of the embedding models we recognize, used when the
// configuration does not override them.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint. It issues
// one HTTP request per Embed call and leaves retries to the Batcher.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithOpenAILogger sets the logger. Default is a no-op logger.
func WithOpenAILogger(logger *zap.Logger) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.logger = logger
	}
}

// NewOpenAIProvider creates a provider for the given endpoint and model.
// baseURL defaults to the OpenAI API, model to text-embedding-3-small.
// When dimensions is 0 it is resolved from the known model table; an
// unknown model without explicit dimensions is a configuration error.
func NewOpenAIProvider(baseURL, apiKey, model string, dimensions int, timeout time.Duration, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: embedding API key is empty", passerr.ErrConfiguration)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimensions <= 0 {
		d, ok := modelDimensions[model]
		if !ok {
			return nil, fmt.Errorf("%w: unknown embedding model %q and no explicit dimensions", passerr.ErrConfiguration, model)
		}
		dimensions = d
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := &OpenAIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// RateLimitError reports a rate-limited provider call. RetryAfter carries
// the wait the provider asked for, zero when it sent none.
type RateLimitError struct {
	Status     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("embedding provider rate limited (%s)", e.Status)
}

func (e *RateLimitError) Unwrap() error {
	return passerr.ErrProvider
}

// Embed requests one vector per text. The response may arrive in any order;
// entries are placed by their index field. Rate limits and server faults
// come back as provider errors for the Batcher to retry; client-side
// rejections come back as validation or configuration errors and are
// terminal.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{Model: p.model, Input: texts}
	// Only the v3 models accept a dimensions override.
	if strings.HasPrefix(p.model, "text-embedding-3") {
		reqBody.Dimensions = p.dimensions
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings request failed: %v", passerr.ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Status: resp.Status, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: embeddings request failed with status %s", passerr.ErrProvider, resp.Status)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: embeddings request rejected with status %s", passerr.ErrConfiguration, resp.Status)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: embeddings request rejected with status %s: %s", passerr.ErrValidation, resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding embeddings response: %v", passerr.ErrProvider, err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d inputs", passerr.ErrProvider, len(decoded.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: provider returned out-of-range index %d", passerr.ErrProvider, d.Index)
		}
		if len(d.Embedding) != p.dimensions {
			return nil, fmt.Errorf("%w: provider returned %d-dimensional vector, expected %d", passerr.ErrProvider, len(d.Embedding), p.dimensions)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("%w: provider response missing embedding for index %d", passerr.ErrProvider, i)
		}
	}

	p.logger.Debug("embedded batch",
		zap.Int("texts", len(texts)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// Dimensions returns the embedding dimension.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op; the HTTP client holds no resources needing release.
func (p *OpenAIProvider) Close() error {
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
