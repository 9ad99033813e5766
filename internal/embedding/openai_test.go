package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearhaven/passage/internal/passerr"
)

func TestNewOpenAIProvider(t *testing.T) {
	if _, err := NewOpenAIProvider("", "", "text-embedding-3-small", 0, 0); !errors.Is(err, passerr.ErrConfiguration) {
		t.Errorf("empty key: error = %v, want ErrConfiguration", err)
	}
	if _, err := NewOpenAIProvider("", "key", "some-custom-model", 0, 0); !errors.Is(err, passerr.ErrConfiguration) {
		t.Errorf("unknown model without dimensions: error = %v", err)
	}
	p, err := NewOpenAIProvider("", "key", "", 0, 0)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if p.Dimensions() != 1536 {
		t.Errorf("default dimensions = %d, want 1536", p.Dimensions())
	}
	p, err = NewOpenAIProvider("", "key", "some-custom-model", 768, 0)
	if err != nil {
		t.Fatalf("explicit dimensions: %v", err)
	}
	if p.Dimensions() != 768 {
		t.Errorf("dimensions = %d, want 768", p.Dimensions())
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	var gotReq embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embeddings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		// Answer out of order: callers must reorder by index.
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float64{1, 0, 0}},
				{"index": 0, "embedding": []float64{0, 1, 0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL, "test-key", "text-embedding-3-small", 3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotReq.Model != "text-embedding-3-small" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.Dimensions != 3 {
		t.Errorf("request dimensions = %d, want 3", gotReq.Dimensions)
	}
	if len(gotReq.Input) != 2 {
		t.Errorf("request input length = %d", len(gotReq.Input))
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	if vecs[0][1] != 1 || vecs[1][0] != 1 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func TestOpenAIProvider_noDimensionsFieldForLegacyModel(t *testing.T) {
	var rawBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rawBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(srv.URL, "key", "text-embedding-ada-002", 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if _, present := rawBody["dimensions"]; present {
		t.Error("dimensions field must not be sent for models that reject it")
	}
}

func TestOpenAIProvider_statusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "7"}, passerr.ErrProvider},
		{"server error", http.StatusInternalServerError, nil, passerr.ErrProvider},
		{"unauthorized", http.StatusUnauthorized, nil, passerr.ErrConfiguration},
		{"bad request", http.StatusBadRequest, nil, passerr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p, err := NewOpenAIProvider(srv.URL, "key", "text-embedding-3-small", 4, time.Second)
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Embed(context.Background(), []string{"x"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.status == http.StatusTooManyRequests {
				var rl *RateLimitError
				if !errors.As(err, &rl) {
					t.Fatalf("expected RateLimitError, got %T", err)
				}
				if rl.RetryAfter != 7*time.Second {
					t.Errorf("RetryAfter = %v, want 7s", rl.RetryAfter)
				}
			}
		})
	}
}

func TestOpenAIProvider_responseValidation(t *testing.T) {
	t.Run("count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"index": 0, "embedding": []float64{1, 0}},
				},
			})
		}))
		defer srv.Close()
		p, err := NewOpenAIProvider(srv.URL, "key", "text-embedding-3-small", 2, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Embed(context.Background(), []string{"a", "b"}); !errors.Is(err, passerr.ErrProvider) {
			t.Errorf("error = %v, want ErrProvider", err)
		}
	})
	t.Run("dimension mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"index": 0, "embedding": []float64{1, 0, 0}},
				},
			})
		}))
		defer srv.Close()
		p, err := NewOpenAIProvider(srv.URL, "key", "text-embedding-3-small", 2, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Embed(context.Background(), []string{"a"}); !errors.Is(err, passerr.ErrProvider) {
			t.Errorf("error = %v, want ErrProvider", err)
		}
	})
}
