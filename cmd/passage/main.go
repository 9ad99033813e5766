// Package main is the passage CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/chunker"
	"github.com/clearhaven/passage/internal/cli"
	"github.com/clearhaven/passage/internal/config"
	"github.com/clearhaven/passage/internal/embedding"
	"github.com/clearhaven/passage/internal/extract"
	"github.com/clearhaven/passage/internal/fileid"
	"github.com/clearhaven/passage/internal/ingest"
	"github.com/clearhaven/passage/internal/keyword"
	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/internal/search"
	"github.com/clearhaven/passage/internal/token"
	"github.com/clearhaven/passage/internal/vector"
	"github.com/clearhaven/passage/internal/watcher"
	"github.com/clearhaven/passage/pkg/utils"
)

var version = "dev"

const configFileName = "config.yaml"

// defaultConfigPath is ~/.passage/config.yaml; empty when the home directory
// cannot be resolved.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".passage", configFileName)
}

// loadConfig resolves the effective configuration and the path it came from.
// The default path first falls back to config.yaml in the current directory
// (so running from a project dir picks up the project's settings), then to
// built-in defaults so the CLI works with no file at all. An explicitly
// given path must load. The returned path is empty for built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	defaultPath := defaultConfigPath()
	if path != "" && path != defaultPath {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, configFileName)
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			return cfg, fallback, loadErr
		}
	}
	if defaultPath != "" {
		if _, err := os.Stat(defaultPath); err == nil {
			cfg, loadErr := config.Load(defaultPath)
			return cfg, defaultPath, loadErr
		}
	}

	cfg := config.Default()
	cfg.ExpandPaths(".")
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

func main() {
	// API keys may live in a .env next to the caller.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "delete":
		runDelete()
	case "stats":
		runStats()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("passage version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves flags (and their values) that appear after positional
// arguments to the front, since flag.Parse stops at the first non-flag.
// "passage query budget report -k 5" parses the same as "-k 5 budget report".
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins positional args so multi-word queries work with or
// without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// kvFlag collects repeated key=value flags into a metadata map.
type kvFlag map[string]interface{}

func (f kvFlag) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (f kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[k] = v
	return nil
}

// stringsFlag collects a repeatable string flag.
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}

// resolveDocID accepts either a document id or a file path and returns the
// document id.
func resolveDocID(arg string) string {
	if strings.HasPrefix(arg, "file:") {
		return arg
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return arg
	}
	return fileid.FileDocID(abs)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	force := fs.Bool("force", false, "re-ingest files even when content is unchanged")
	meta := kvFlag{}
	fs.Var(meta, "meta", "metadata key=value attached to every chunk (repeatable)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passage ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metadata map[string]interface{}
	if len(meta) > 0 {
		metadata = meta
	}

	var results []ingest.Result
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stat %s: %v\n", path, err)
			os.Exit(1)
		}
		if info.IsDir() {
			dirResults, err := components.Ingestor.IngestDirectory(ctx, path, metadata, *force)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
				os.Exit(1)
			}
			results = append(results, dirResults...)
			continue
		}
		res, err := components.Ingestor.IngestFile(ctx, path, metadata, *force)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		results = append(results, *res)
	}
	cli.WriteIngestResults(os.Stdout, results)
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: passage query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces, so quoting is optional.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  passage query sodium intake guidelines
  passage query "sodium intake" -k 3
  passage query -mode hybrid -filter topic=health sodium
  passage query -format json sodium > results.json
`)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	k := fs.Int("k", 0, "number of results (0 = configured default)")
	mode := fs.String("mode", "", "retrieval mode: vector, keyword, or hybrid")
	format := fs.String("format", "text", "output format: text or json")
	filter := kvFlag{}
	fs.Var(filter, "filter", "metadata key=value results must match (repeatable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}
	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	req := models.QueryRequest{
		Query: queryStr,
		TopK:  *k,
		Mode:  models.QueryMode(*mode),
	}
	if len(filter) > 0 {
		req.Filter = models.Filter(filter)
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	started := time.Now()
	results, err := components.Retriever.Search(context.Background(), req.Mode, req.Query, req.TopK, req.Filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	resp := &models.QueryResponse{
		Query:     req.Query,
		Mode:      req.Mode,
		Results:   results,
		QueryTime: time.Since(started).Milliseconds(),
	}
	if err := cli.WriteQueryResponse(os.Stdout, resp, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 && outFormat == cli.FormatText && req.Mode != models.ModeVector {
		if corrected, ok := components.Retriever.SuggestQuery(req.Query); ok {
			fmt.Printf("Did you mean %q?\n", corrected)
		}
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passage delete [flags] <path-or-document-id>")
		os.Exit(1)
	}
	docID := resolveDocID(fs.Arg(0))

	_, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	if err := components.Ingestor.DeleteDocument(context.Background(), docID); err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

// statsOutput is the stats command's JSON shape.
type statsOutput struct {
	Backend        string  `json:"backend"`
	Documents      int     `json:"documents"`
	Chunks         int     `json:"chunks"`
	Dimensions     int     `json:"dimensions"`
	KeywordEntries *uint64 `json:"keyword_entries,omitempty"`
	DiskUsageBytes *int64  `json:"disk_usage_bytes,omitempty"`
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Store.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	out := statsOutput{
		Backend:    stats.Backend,
		Documents:  stats.Documents,
		Chunks:     stats.Chunks,
		Dimensions: stats.Dimensions,
	}
	if components.Keyword != nil {
		if n, err := components.Keyword.EntryCount(); err == nil {
			out.KeywordEntries = &n
		}
	}
	if bytes, err := utils.DiskUsageBytes(cfg.Store.Path, cfg.Search.Keyword.IndexPath); err == nil && bytes > 0 {
		out.DiskUsageBytes = &bytes
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("backend:          %s\n", out.Backend)
		fmt.Printf("documents:        %d\n", out.Documents)
		fmt.Printf("chunks:           %d\n", out.Chunks)
		fmt.Printf("dimensions:       %d\n", out.Dimensions)
		if out.KeywordEntries != nil {
			fmt.Printf("keyword_entries:  %d\n", *out.KeywordEntries)
		}
		if out.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d\n", *out.DiskUsageBytes)
		}
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	syncFirst := fs.Bool("sync", true, "ingest files already present before watching")
	var paths stringsFlag
	fs.Var(&paths, "path", "directory to watch (repeatable; default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	roots := []string(paths)
	if len(roots) == 0 {
		roots = cfg.Watch.Paths
	}
	if len(roots) == 0 {
		fmt.Fprintln(os.Stderr, "No watch paths: pass --path or set watch.paths in the config")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing := components.Ingestor
	w, err := watcher.New(roots,
		func(path string) {
			if _, err := ing.IngestFile(ctx, path, nil, false); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := ing.DeleteDocument(ctx, resolveDocID(path)); err != nil {
				logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithDebounce(time.Duration(cfg.Watch.Debounce)),
		watcher.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create watcher: %v\n", err)
		os.Exit(1)
	}
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()

	if *syncFirst {
		w.SyncExisting()
	}

	<-ctx.Done()
	logger.Info("shutting down")
}

// Components holds the wired pipeline services.
type Components struct {
	Store     vector.Store
	Keyword   *keyword.Index
	Ingestor  *ingest.Ingestor
	Retriever *search.Retriever

	provider embedding.Provider
}

func (c *Components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.provider != nil {
		_ = c.provider.Close()
	}
}

// setup loads configuration, builds the logger, and wires the components.
// Any failure is fatal for the command.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved != "" {
		logger.Debug("config loaded", zap.String("path", resolved))
	} else {
		logger.Debug("using built-in configuration defaults")
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	counter, err := newCounter(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tokenizer: %w", err)
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize embedding provider: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		provider, err = embedding.NewCachedProvider(provider, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("initialize embedding cache: %w", err)
		}
	}
	batcher, err := embedding.NewBatcher(provider, cfg.Embedding.BatchSize,
		embedding.WithMaxInFlight(cfg.Embedding.MaxInFlight),
		embedding.WithMaxRetries(cfg.Embedding.MaxRetries),
		embedding.WithBatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initialize batcher: %w", err)
	}

	builder, err := chunker.NewBuilder(
		cfg.Chunking.SentencesPerChunk,
		cfg.Chunking.SentenceOverlap,
		cfg.Chunking.MinTokens,
		cfg.Chunking.MaxTokens,
		counter,
		chunker.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initialize chunker: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	var kw *keyword.Index
	if cfg.Search.Keyword.Enabled {
		if dir := filepath.Dir(cfg.Search.Keyword.IndexPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create keyword index directory: %w", err)
			}
		}
		kw, err = keyword.NewIndex(cfg.Search.Keyword.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("initialize keyword index: %w", err)
		}
	}

	ingestOpts := []ingest.IngestorOption{ingest.WithLogger(logger)}
	if kw != nil {
		ingestOpts = append(ingestOpts, ingest.WithKeywordIndex(kw))
	}
	ingestor, err := ingest.NewIngestor(extract.NewReader(), builder, batcher, store, ingestOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize ingestor: %w", err)
	}

	retrieverOpts := []search.RetrieverOption{
		search.WithDefaultK(cfg.Search.TopK),
		search.WithMinSimilarity(cfg.Search.MinSimilarity),
		search.WithFusionWeights(cfg.Search.Keyword.VectorWeight, cfg.Search.Keyword.KeywordWeight),
		search.WithRetrieverLogger(logger),
	}
	if kw != nil {
		retrieverOpts = append(retrieverOpts, search.WithKeywordIndex(kw))
	}
	retriever, err := search.NewRetriever(batcher, store, retrieverOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize retriever: %w", err)
	}

	return &Components{
		Store:     store,
		Keyword:   kw,
		Ingestor:  ingestor,
		Retriever: retriever,
		provider:  provider,
	}, nil
}

// newCounter pins the tokenizer to the embedding model so chunk budgets
// count the same tokens the provider bills. Models without a known encoding
// fall back to word counting.
func newCounter(cfg *config.Config, logger *zap.Logger) (token.Counter, error) {
	counter, err := token.NewCounter(cfg.Embedding.Model)
	if err == nil {
		return counter, nil
	}
	logger.Warn("no tokenizer for model, counting words instead",
		zap.String("model", cfg.Embedding.Model),
		zap.Error(err))
	return token.NewCounter(token.EncodingWords)
}

func newProvider(cfg *config.Config, logger *zap.Logger) (embedding.Provider, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		key := e.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: environment variable %s is not set", passerr.ErrConfiguration, e.APIKeyEnv)
		}
		return embedding.NewOpenAIProvider(e.BaseURL, key, e.Model, e.Dimensions,
			time.Duration(e.Timeout), embedding.WithOpenAILogger(logger))
	case "mock":
		return embedding.NewMockProvider(e.Dimensions), nil
	case "onnx":
		return embedding.NewONNXProvider(e.ModelPath, e.Dimensions, e.MaxTokens)
	}
	return nil, fmt.Errorf("%w: unknown embedding provider %q", passerr.ErrConfiguration, e.Provider)
}

func newStore(cfg *config.Config) (vector.Store, error) {
	s := cfg.Store
	if s.Backend == "sqlite" && s.Path != "" {
		if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return vector.NewStore(vector.Config{
		Backend:    s.Backend,
		Path:       s.Path,
		DSN:        s.DSN,
		URL:        s.URL,
		APIKey:     s.APIKey(),
		Collection: s.Collection,
		Timeout:    time.Duration(s.Timeout),
		Dimensions: cfg.Embedding.Dimensions,
	})
}

func printUsage() {
	fmt.Println(`passage - chunk, embed, and retrieve local documents

Usage:
  passage ingest [flags] <path>...   Chunk and embed files or directories
  passage query [flags] <text>       Retrieve the best matching chunks
  passage delete [flags] <target>    Delete a document by path or id
  passage stats [flags]              Show store and index statistics
  passage watch [flags]              Watch directories and ingest changes
  passage version                    Show version
  passage help                       Show this help

Common Flags:
  --config string   Config file path (default: ~/.passage/config.yaml,
                    falling back to ./config.yaml, then built-in defaults)
  --debug           Enable debug logging

Ingest Flags:
  --force           Re-ingest files even when content is unchanged
  --meta k=v        Metadata attached to every chunk (repeatable)

Query Flags:
  --k int           Number of results (0 = configured default)
  --mode string     Retrieval mode: vector (default), keyword, or hybrid
  --filter k=v      Metadata results must match (repeatable)
  --format string   Output format: text or json

Stats Flags:
  --format string   Output format: text or json

Watch Flags:
  --path dir        Directory to watch (repeatable; default from config)
  --sync            Ingest files already present before watching (default true)

Examples:
  passage ingest ./docs --meta topic=health
  passage query sodium intake guidelines
  passage query -mode hybrid -k 5 "sodium intake"
  passage delete ./docs/report.pdf
  passage stats --format json
  passage watch --path ./inbox`)
}
