package vector

import (
	"context"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// PineconeConfig configures the secondary vector provider (spec.md §4.3
// names Pinecone as an alternate deployment target behind the same
// Provider interface).
type PineconeConfig struct {
	APIKey      string `yaml:"api_key"`
	Host        string `yaml:"host,omitempty"`
	IndexName   string `yaml:"index_name"`
	Environment string `yaml:"environment,omitempty"`
}

// PineconeProvider implements Provider against a Pinecone index.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string
}

// NewPineconeProvider connects to Pinecone using cfg.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New(apperr.KindInternal, "pinecone: api_key is required")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}

	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "create pinecone client")
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "bestbox-kb"
	}

	return &PineconeProvider{client: client, indexName: indexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) index(collection string) string {
	if collection != "" {
		return collection
	}
	return p.indexName
}

func (p *PineconeProvider) connect(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, p.index(collection))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "describe index %q", p.index(collection))
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "connect to index %q", p.index(collection))
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		meta, err = structpb.NewStruct(metadata)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "convert metadata")
		}
	}

	if _, err := conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}}); err != nil {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "upsert vector %q", id)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var metaFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		metaFilter, err = structpb.NewStruct(filter)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "convert filter")
		}
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metaFilter,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "query index %q", p.index(collection))
	}

	return convertPineconeResults(resp.Matches), nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection string, id string) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "delete vector %q", id)
	}
	return nil
}

func (p *PineconeProvider) Close() error { return nil }

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Vector == nil {
			continue
		}

		metadata := make(map[string]any)
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				metadata[k] = v
			}
		}
		content, _ := metadata["content"].(string)

		results = append(results, Result{
			ID:       m.Vector.Id,
			Content:  content,
			Vector:   m.Vector.Values,
			Metadata: metadata,
			Score:    float64(m.Score),
		})
	}
	return results
}

var _ Provider = (*PineconeProvider)(nil)
