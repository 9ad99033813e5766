package config

import "time"

// Default returns the configuration used when no file is given, and the seed
// that Load layers a file over. Paths are unexpanded; call ExpandPaths.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			SentencesPerChunk: 5,
			SentenceOverlap:   1,
			MinTokens:         64,
			MaxTokens:         480,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			Dimensions:  1536,
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			BatchSize:   100,
			MaxInFlight: 4,
			MaxRetries:  5,
			Timeout:     Duration(30 * time.Second),
			CacheSize:   1000,
			MaxTokens:   256,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			Path:       "~/.passage/passage.db",
			Collection: "passage",
			Timeout:    Duration(10 * time.Second),
		},
		Search: SearchConfig{
			TopK: 8,
			Keyword: KeywordConfig{
				IndexPath:     "~/.passage/keyword.bleve",
				VectorWeight:  0.7,
				KeywordWeight: 0.3,
			},
		},
		Watch: WatchConfig{
			Debounce: Duration(500 * time.Millisecond),
		},
	}
}
