package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// Config is the typed application configuration, loaded from TOML.
// Zero values fall back to defaults at construction time; API keys may
// come from the environment instead of the file.
type Config struct {
	// DataDir holds the SQLite database and index snapshots.
	// Defaults to ~/.benefitsrag/data.
	DataDir string `toml:"data_dir"`

	// PromptDir holds user-editable prompt files.
	// Defaults to ~/.benefitsrag/prompts.
	PromptDir string `toml:"prompt_dir"`

	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Index      IndexConfig      `toml:"index"`
	Ingest     IngestConfig     `toml:"ingest"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of: ollama, openai.
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`

	// APIKey may be left empty; OPENAI_API_KEY is consulted instead.
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
}

// GenerationConfig configures the generation provider.
type GenerationConfig struct {
	// Provider is one of: ollama, openai, anthropic.
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`

	// APIKey may be left empty; OPENAI_API_KEY or ANTHROPIC_API_KEY is
	// consulted instead, matching the provider.
	APIKey string `toml:"api_key"`
}

// IndexConfig configures the vector index backend.
type IndexConfig struct {
	// Backend is one of: memory, pinecone.
	Backend string `toml:"backend"`

	// SnapshotPath persists the memory backend across runs. Relative
	// paths resolve under DataDir.
	SnapshotPath string `toml:"snapshot_path"`

	// Pinecone backend fields. APIKey may be left empty;
	// PINECONE_API_KEY is consulted instead.
	APIKey    string `toml:"api_key"`
	IndexHost string `toml:"index_host"`
	Namespace string `toml:"namespace"`
}

// IngestConfig configures segmentation and ingestion.
type IngestConfig struct {
	MaxChunkLength int `toml:"max_chunk_length"`
	ChunkOverlap   int `toml:"chunk_overlap"`
	Workers        int `toml:"workers"`
}

// RetrievalConfig configures retrieval and answering.
type RetrievalConfig struct {
	TopK            int     `toml:"top_k"`
	EvidenceBudget  int     `toml:"evidence_budget"`
	SimilarityFloor float64 `toml:"similarity_floor"`
}

// LoadConfig reads the configuration file. If configDir is empty it
// defaults to ~/.benefitsrag; a missing file yields the zero Config so
// callers can run on defaults alone.
func LoadConfig(configDir string) (*Config, error) {
	dir, err := resolveConfigDir(configDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to the config file with restricted
// permissions.
func (c *Config) Save(configDir string) error {
	dir, err := resolveConfigDir(configDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.toml"), data, 0600)
}

// EmbeddingSettings translates the embedding section into domain
// settings, filling the API key from the environment when unset.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	apiKey := c.Embedding.APIKey
	if apiKey == "" && c.Embedding.Provider == string(domain.AIProviderOpenAI) {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		BaseURL:    c.Embedding.BaseURL,
		APIKey:     apiKey,
		Dimensions: c.Embedding.Dimensions,
	}
}

// GenerationSettings translates the generation section into domain
// settings, filling the API key from the environment when unset.
func (c *Config) GenerationSettings() *domain.GenerationSettings {
	apiKey := c.Generation.APIKey
	if apiKey == "" {
		switch domain.AIProvider(c.Generation.Provider) {
		case domain.AIProviderOpenAI:
			apiKey = os.Getenv("OPENAI_API_KEY")
		case domain.AIProviderAnthropic:
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	return &domain.GenerationSettings{
		Provider: domain.AIProvider(c.Generation.Provider),
		Model:    c.Generation.Model,
		BaseURL:  c.Generation.BaseURL,
		APIKey:   apiKey,
	}
}

// IndexSettings translates the index section into domain settings.
// Relative snapshot paths resolve under the data directory.
func (c *Config) IndexSettings() *domain.IndexSettings {
	apiKey := c.Index.APIKey
	if apiKey == "" && c.Index.Backend == string(domain.IndexBackendPinecone) {
		apiKey = os.Getenv("PINECONE_API_KEY")
	}

	snapshot := c.Index.SnapshotPath
	if snapshot != "" && !filepath.IsAbs(snapshot) && c.DataDir != "" {
		snapshot = filepath.Join(c.DataDir, snapshot)
	}

	return &domain.IndexSettings{
		Backend:      domain.IndexBackend(c.Index.Backend),
		SnapshotPath: snapshot,
		APIKey:       apiKey,
		IndexHost:    c.Index.IndexHost,
		Namespace:    c.Index.Namespace,
	}
}

// resolveConfigDir applies the default config directory.
func resolveConfigDir(configDir string) (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".benefitsrag"), nil
}
