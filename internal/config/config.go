// Package config loads and merges the core's configuration: compiled-in
// defaults, an optional YAML file, and environment variables, via
// spf13/viper, the way briefly/internal/config does it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the loaded configuration. The CLI applies the store
// section, app.log_level and app.data_dir, the ai.gemini api_key, model,
// embedding_model and dimension, and summarize.max_concurrency and
// summarize.timeout. The archive, segment and retrieval sections,
// summarize.max_works and the target word counts, and ai.gemini timeout,
// max_tokens and temperature are loaded and validated but not passed to
// the pipeline, which uses its compiled-in defaults for them.
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Archive   Archive   `mapstructure:"archive"`
	Segment   Segment   `mapstructure:"segment"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Summarize Summarize `mapstructure:"summarize"`
	Store     Store     `mapstructure:"store"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds LLM and embedding provider configuration.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig configures the shipped Gemini-backed LLM/embedding clients.
type GeminiConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Timeout        string  `mapstructure:"timeout"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
	Dimension      int     `mapstructure:"dimension"`
}

// Archive holds the §4.1 ingestion safety bounds.
type Archive struct {
	MaxEntries    int     `mapstructure:"max_entries"`
	MaxSizeBytes  int64   `mapstructure:"max_size_bytes"`
	MaxRatio      float64 `mapstructure:"max_ratio"`
	MaxCandidates int     `mapstructure:"max_candidates"`
}

// Segment holds the §4.3 extraction character budget.
type Segment struct {
	MinChars int `mapstructure:"min_chars"`
	MaxChars int `mapstructure:"max_chars"`
}

// Retrieval holds the §4.4 BM25/RRF parameters.
type Retrieval struct {
	BM25K1 float64 `mapstructure:"bm25_k1"`
	BM25B  float64 `mapstructure:"bm25_b"`
	RRFK   float64 `mapstructure:"rrf_k"`
	TopK   int     `mapstructure:"top_k"`
}

// Summarize holds the §4.7 hierarchical summariser defaults.
type Summarize struct {
	MaxWorks           int    `mapstructure:"max_works"`
	TargetWordsPerWork int    `mapstructure:"target_words_per_work"`
	TargetWordsFinal   int    `mapstructure:"target_words_final"`
	MaxConcurrency     int    `mapstructure:"max_concurrency"`
	Timeout            string `mapstructure:"timeout"`
}

// Store holds vector store selection; the SQLite file is created under
// app.data_dir.
type Store struct {
	// Backend is "memory" or "sqlite".
	Backend           string `mapstructure:"backend"`
	Collection        string `mapstructure:"collection"`
	ReindexOnStartup  bool   `mapstructure:"reindex_on_startup"`
}

var global *Config

// Load reads the configuration from defaults, an optional YAML file, and
// the environment, in that order of increasing precedence, and caches the
// result for subsequent Get calls.
func Load(configFile string) (*Config, error) {
	if global != nil {
		return global, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".docsum")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validateDurations(cfg); err != nil {
		return nil, err
	}

	global = cfg
	return cfg, nil
}

// Get returns the cached configuration, loading it with no explicit file
// if necessary.
func Get() *Config {
	if global == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("load configuration: %v", err))
		}
		return cfg
	}
	return global
}

// Reset clears the cached configuration; tests use this to force a fresh
// Load.
func Reset() {
	global = nil
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".docsum")

	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.4)
	viper.SetDefault("ai.gemini.dimension", 768)

	viper.SetDefault("archive.max_entries", 1000)
	viper.SetDefault("archive.max_size_bytes", 100*1024*1024)
	viper.SetDefault("archive.max_ratio", 100.0)
	viper.SetDefault("archive.max_candidates", 10)

	viper.SetDefault("segment.min_chars", 800)
	viper.SetDefault("segment.max_chars", 1500)

	viper.SetDefault("retrieval.bm25_k1", 1.5)
	viper.SetDefault("retrieval.bm25_b", 0.75)
	viper.SetDefault("retrieval.rrf_k", 60.0)
	viper.SetDefault("retrieval.top_k", 25)

	viper.SetDefault("summarize.max_works", 15)
	viper.SetDefault("summarize.target_words_per_work", 150)
	viper.SetDefault("summarize.target_words_final", 800)
	viper.SetDefault("summarize.max_concurrency", 1)
	viper.SetDefault("summarize.timeout", "120s")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.collection", "docsum")
	viper.SetDefault("store.reindex_on_startup", false)
}

// bindEnvironmentVariables binds the Gemini API key under the several
// environment variable names the shipped llm/embedding clients already
// accept, so a config load and a direct client construction agree.
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
}

func bindEnvKeys(key string, envVars []string) {
	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			viper.Set(key, val)
			return
		}
	}
	_ = viper.BindEnv(append([]string{key}, envVars...)...)
}

func validateDurations(cfg *Config) error {
	durations := map[string]string{
		"ai.gemini.timeout":  cfg.AI.Gemini.Timeout,
		"summarize.timeout":  cfg.Summarize.Timeout,
	}
	for key, d := range durations {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, d)
		}
	}
	return nil
}
