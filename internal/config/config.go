package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to run the triage pipeline.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Agents     AgentsConfig     `yaml:"agents"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Weaviate   WeaviateConfig   `yaml:"weaviate"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Output     OutputConfig     `yaml:"output"`
}

// ServerConfig controls the gRPC listener used by `triage serve`.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ModelConfig selects the text-generation model shared by all agents.
type ModelConfig struct {
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	BaseURL     string        `yaml:"baseURL"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig selects the embedding model used by the retriever.
type EmbeddingsConfig struct {
	Provider string        `yaml:"provider"`
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"baseURL"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AgentsConfig holds prompt and validation settings shared by the agents.
type AgentsConfig struct {
	PromptsDir          string `yaml:"promptsDir"`
	StrictSummaryCounts bool   `yaml:"strictSummaryCounts"`
}

// KnowledgeConfig controls the knowledge-base corpus and retrieval.
type KnowledgeConfig struct {
	DocumentsPath string `yaml:"documentsPath"`
	Extension     string `yaml:"extension"`
	TopK          int    `yaml:"topK"`
	// Backend is "memory" or "weaviate".
	Backend string `yaml:"backend"`
}

// WeaviateConfig configures the optional remote vector index.
type WeaviateConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	ClassName string        `yaml:"className"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig controls caching of embedding vectors.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	EmbeddingTTL time.Duration `yaml:"embeddingTTL"`
	MemoryItems  int           `yaml:"memoryItems"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// OutputConfig controls where the report is written.
type OutputConfig struct {
	ReportPath string `yaml:"reportPath"`
}

var (
	modelProviders     = []string{"openai", "anthropic", "gemini"}
	embeddingProviders = []string{"openai", "gemini"}
	knowledgeBackends  = []string{"memory", "weaviate"}
)

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TRIAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values outside the supported sets.
func (c *Config) Validate() error {
	if !oneOf(c.Model.Provider, modelProviders) {
		return fmt.Errorf("model.provider %q not supported (want one of %s)", c.Model.Provider, strings.Join(modelProviders, ", "))
	}
	if !oneOf(c.Embeddings.Provider, embeddingProviders) {
		return fmt.Errorf("embeddings.provider %q not supported (want one of %s)", c.Embeddings.Provider, strings.Join(embeddingProviders, ", "))
	}
	if !oneOf(c.Knowledge.Backend, knowledgeBackends) {
		return fmt.Errorf("knowledge.backend %q not supported (want one of %s)", c.Knowledge.Backend, strings.Join(knowledgeBackends, ", "))
	}
	if c.Knowledge.Backend == "weaviate" && c.Weaviate.Endpoint == "" {
		return errors.New("weaviate.endpoint is required when knowledge.backend is weaviate")
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge.topK must be positive, got %d", c.Knowledge.TopK)
	}
	if c.Model.Temperature < 0 {
		return fmt.Errorf("model.temperature must be non-negative, got %v", c.Model.Temperature)
	}
	if c.Output.ReportPath == "" {
		return errors.New("output.reportPath is required")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   4096,
			Timeout:     120 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "openai",
			Name:     "text-embedding-3-small",
			Timeout:  30 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			DocumentsPath: "knowledge_base/documents",
			Extension:     ".txt",
			TopK:          3,
			Backend:       "memory",
		},
		Weaviate: WeaviateConfig{ClassName: "KnowledgeDocument", Timeout: 5 * time.Second},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			EmbeddingTTL: 24 * time.Hour,
			MemoryItems:  4096,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Output:  OutputConfig{ReportPath: "outputs/report.md"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIAGE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TRIAGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TRIAGE_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("TRIAGE_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("TRIAGE_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("TRIAGE_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("TRIAGE_MODEL_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.Temperature = t
		}
	}
	if v := os.Getenv("TRIAGE_MODEL_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.MaxTokens = n
		}
	}
	if v := os.Getenv("TRIAGE_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("TRIAGE_EMBEDDINGS_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("TRIAGE_EMBEDDINGS_NAME"); v != "" {
		cfg.Embeddings.Name = v
	}
	if v := os.Getenv("TRIAGE_EMBEDDINGS_BASE_URL"); v != "" {
		cfg.Embeddings.BaseURL = v
	}
	if v := os.Getenv("TRIAGE_EMBEDDINGS_API_KEY"); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := os.Getenv("TRIAGE_PROMPTS_DIR"); v != "" {
		cfg.Agents.PromptsDir = v
	}
	if v := os.Getenv("TRIAGE_STRICT_SUMMARY_COUNTS"); v != "" {
		cfg.Agents.StrictSummaryCounts = parseBool(v)
	}
	if v := os.Getenv("TRIAGE_DOCUMENTS_PATH"); v != "" {
		cfg.Knowledge.DocumentsPath = v
	}
	if v := os.Getenv("TRIAGE_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Knowledge.TopK = k
		}
	}
	if v := os.Getenv("TRIAGE_KNOWLEDGE_BACKEND"); v != "" {
		cfg.Knowledge.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TRIAGE_WEAVIATE_URL"); v != "" {
		cfg.Weaviate.Endpoint = v
	}
	if v := os.Getenv("TRIAGE_WEAVIATE_API_KEY"); v != "" {
		cfg.Weaviate.APIKey = v
	}
	if v := os.Getenv("TRIAGE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("TRIAGE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("TRIAGE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("TRIAGE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("TRIAGE_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("TRIAGE_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("TRIAGE_CACHE_EMBEDDING_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.EmbeddingTTL = d
		}
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TRIAGE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("TRIAGE_REPORT_PATH"); v != "" {
		cfg.Output.ReportPath = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
