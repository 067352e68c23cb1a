package domain

// AIProvider identifies which backend serves embeddings or generation.
type AIProvider string

// Supported AI providers.
const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

// IndexBackend identifies which vector index implementation to use.
type IndexBackend string

// Supported vector index backends.
const (
	IndexBackendMemory   IndexBackend = "memory"
	IndexBackendPinecone IndexBackend = "pinecone"
)

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
}

// IsConfigured returns true when the settings name a provider.
func (s *EmbeddingSettings) IsConfigured() bool {
	return s != nil && s.Provider != ""
}

// GenerationSettings configures the generation provider.
type GenerationSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true when the settings name a provider.
func (s *GenerationSettings) IsConfigured() bool {
	return s != nil && s.Provider != ""
}

// IndexSettings configures the vector index.
type IndexSettings struct {
	Backend IndexBackend

	// SnapshotPath persists the memory backend across runs (optional).
	SnapshotPath string

	// Pinecone backend fields.
	APIKey    string
	IndexHost string
	Namespace string
}
