// Package cli renders pipeline results for terminal and scripted consumers.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/clearhaven/passage/internal/ingest"
	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/pkg/utils"
)

// Format selects the rendering for query output.
type Format string

const (
	// FormatText is the human-readable default.
	FormatText Format = "text"
	// FormatJSON is structured output for machine consumption.
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value to a Format. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: unknown output format %q (supported: text, json)", passerr.ErrValidation, s)
}

const contentPreviewLen = 200

// WriteQueryResponse writes the response to w in the given format. Any
// format other than FormatJSON renders as text.
func WriteQueryResponse(w io.Writer, resp *models.QueryResponse, format Format) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	writeQueryResponseText(w, resp)
	return nil
}

func writeQueryResponseText(w io.Writer, resp *models.QueryResponse) {
	fmt.Fprintf(w, "\n%d results for %q in %dms (%s mode)\n\n",
		len(resp.Results), resp.Query, resp.QueryTime, resp.Mode)
	for i, res := range resp.Results {
		writeOneResult(w, i+1, res)
	}
}

func writeOneResult(w io.Writer, rank int, res models.QueryResult) {
	fmt.Fprintln(w, strings.Repeat("-", 57))
	fmt.Fprintf(w, "Rank: %d | Score: %.4f", rank, res.Similarity)
	if res.KeywordScore > 0 {
		fmt.Fprintf(w, " | Keyword: %.4f", res.KeywordScore)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Doc: %s | Chunk: %d", res.Chunk.DocID, res.Chunk.ChunkIndex)
	if len(res.Chunk.PageNumbers) > 0 {
		fmt.Fprintf(w, " | Pages: %s", joinInts(res.Chunk.PageNumbers))
	}
	if res.Chunk.TokenCount > 0 {
		fmt.Fprintf(w, " | Tokens: %d", res.Chunk.TokenCount)
	}
	fmt.Fprintf(w, "\n\n%s\n\n", utils.Truncate(res.Chunk.Content, contentPreviewLen))
}

// WriteIngestResults writes one line per file plus a summary.
func WriteIngestResults(w io.Writer, results []ingest.Result) {
	ingested, skipped := 0, 0
	for _, r := range results {
		if r.Skipped {
			skipped++
			fmt.Fprintf(w, "unchanged %s\n", r.Path)
			continue
		}
		ingested++
		fmt.Fprintf(w, "ingested  %s (%d pages, %d chunks)\n", r.Path, r.Pages, r.Chunks)
	}
	fmt.Fprintf(w, "%d ingested, %d unchanged\n", ingested, skipped)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
