package vector

import "fmt"

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderMemory is the zero-config, in-process provider. Default for
	// local development and tests (spec.md §8).
	ProviderMemory ProviderType = "memory"

	// ProviderQdrant is the reference production dense-vector store
	// (spec.md §4.3).
	ProviderQdrant ProviderType = "qdrant"

	// ProviderPinecone is the alternate managed-cloud provider.
	ProviderPinecone ProviderType = "pinecone"
)

// ProviderConfig selects and configures one vector Provider.
type ProviderConfig struct {
	Type ProviderType `yaml:"type"`

	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// SetDefaults fills in the zero-config default (in-memory) when Type is unset.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderMemory
	}
}

// Validate checks that the fields required by Type are present.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderMemory:
		return nil
	case ProviderQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("vector: qdrant.host is required")
		}
		return nil
	case ProviderPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("vector: pinecone.api_key is required")
		}
		return nil
	case "":
		return fmt.Errorf("vector: provider type is required")
	default:
		return fmt.Errorf("vector: unknown provider type %q", c.Type)
	}
}

// NewProvider builds the Provider selected by cfg.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return NewMemoryProvider(), nil
	}

	switch cfg.Type {
	case ProviderMemory, "":
		return NewMemoryProvider(), nil
	case ProviderQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vector: qdrant configuration is required")
		}
		return NewQdrantProvider(*cfg.Qdrant)
	case ProviderPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("vector: pinecone configuration is required")
		}
		return NewPineconeProvider(*cfg.Pinecone)
	default:
		return nil, fmt.Errorf("vector: unknown provider type %q", cfg.Type)
	}
}
