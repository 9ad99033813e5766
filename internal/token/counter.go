// Package token counts tokens under a pinned encoding.
//
// The encoding is derived from the embedding model name and must be identical
// on the ingestion and query paths; chunk token budgets are only meaningful
// against the tokenizer the embedding provider actually uses.
package token

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/clearhaven/passage/internal/passerr"
)

// EncodingWords selects the whitespace word counter instead of a BPE
// encoding. It exists for offline setups and tests; it is never used as a
// silent fallback.
const EncodingWords = "words"

// Counter measures the token length of a text span. Implementations are
// pure: deterministic, no side effects, safe for concurrent use.
type Counter interface {
	Count(text string) int
	Encoding() string
}

// Embedding models we pin encodings for without consulting the tiktoken
// model table, which lags behind provider releases.
var modelEncodings = map[string]string{
	"text-embedding-3-small": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-ada-002": "cl100k_base",
}

var loaderOnce sync.Once

// NewCounter returns the Counter pinned to the given embedding model name.
// The special name "words" selects the whitespace word counter. Unknown
// model names are a configuration error, never a silent fallback.
func NewCounter(model string) (Counter, error) {
	if model == EncodingWords {
		return wordCounter{}, nil
	}
	// BPE tables ship with the binary; no network fetch at runtime.
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding, ok := modelEncodings[model]; ok {
		enc, err := tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, fmt.Errorf("loading encoding %q for model %q: %w", encoding, model, err)
		}
		return &bpeCounter{enc: enc, encoding: encoding}, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("%w: no token encoding for model %q", passerr.ErrConfiguration, model)
	}
	return &bpeCounter{enc: enc, encoding: model}, nil
}

type bpeCounter struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

func (c *bpeCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *bpeCounter) Encoding() string {
	return c.encoding
}

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) Encoding() string {
	return EncodingWords
}
