package models

import (
	"errors"
	"testing"

	"github.com/clearhaven/passage/internal/passerr"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      *QueryRequest
		wantErr  bool
		wantMode QueryMode
	}{
		{"empty query", &QueryRequest{Query: ""}, true, ""},
		{"defaults to vector mode", &QueryRequest{Query: "iron absorption"}, false, ModeVector},
		{"keeps explicit mode", &QueryRequest{Query: "x", Mode: ModeKeyword}, false, ModeKeyword},
		{"hybrid mode", &QueryRequest{Query: "x", Mode: ModeHybrid}, false, ModeHybrid},
		{"unknown mode", &QueryRequest{Query: "x", Mode: "semantic"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				if !errors.Is(err, passerr.ErrValidation) {
					t.Errorf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.req.Mode != tt.wantMode {
				t.Errorf("Mode = %q, want %q", tt.req.Mode, tt.wantMode)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	meta := map[string]interface{}{
		"source":  "nutrition.pdf",
		"page":    float64(3),
		"lang":    "en",
		"section": "minerals",
	}
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil filter matches", nil, true},
		{"empty filter matches", Filter{}, true},
		{"single key match", Filter{"lang": "en"}, true},
		{"subset match", Filter{"lang": "en", "section": "minerals"}, true},
		{"value mismatch", Filter{"lang": "de"}, false},
		{"missing key", Filter{"author": "anyone"}, false},
		{"int matches json float", Filter{"page": 3}, true},
		{"numeric mismatch", Filter{"page": 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(meta); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_MatchesNilMetadata(t *testing.T) {
	if (Filter{"k": "v"}).Matches(nil) {
		t.Error("non-empty filter should not match nil metadata")
	}
	if !(Filter{}).Matches(nil) {
		t.Error("empty filter should match nil metadata")
	}
}
