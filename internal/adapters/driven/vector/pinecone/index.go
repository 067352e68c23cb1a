// Package pinecone provides a vector index adapter over the Pinecone
// serverless HTTP API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the Pinecone index adapter.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// IndexHost is the index endpoint host returned by describe_index,
	// e.g. https://knowledge-abc123.svc.aped-4627-b74a.pinecone.io
	// (required).
	IndexHost string

	// Namespace partitions records within the index (optional).
	Namespace string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Index talks to one Pinecone serverless index.
type Index struct {
	client    *http.Client
	host      string
	apiKey    string
	namespace string
}

// Pinecone wire formats.

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	Namespace       string         `json:"namespace,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	Filter    map[string]any `json:"filter"`
	Namespace string         `json:"namespace,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// New creates a Pinecone index adapter.
func New(cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.IndexHost == "" {
		return nil, fmt.Errorf("pinecone: index host is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:    &http.Client{Timeout: cfg.Timeout},
		host:      cfg.IndexHost,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
	}, nil
}

// Upsert inserts or replaces records by chunk ID. Pinecone upserts are
// replace-by-ID and atomic per vector, which carries the idempotent
// replay guarantee.
func (ix *Index) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectors := make([]pineconeVector, len(records))
	for i, rec := range records {
		vectors[i] = pineconeVector{
			ID:     rec.ChunkID,
			Values: rec.Vector,
			Metadata: map[string]any{
				"document_id": rec.Metadata.DocumentID,
				"uri":         rec.Metadata.URI,
				"title":       rec.Metadata.Title,
				"tags":        rec.Metadata.Tags,
				"version":     rec.Metadata.Version,
				"ordinal":     rec.Metadata.Ordinal,
			},
		}
	}

	var out json.RawMessage
	err := ix.post(ctx, "/vectors/upsert", upsertRequest{
		Vectors:   vectors,
		Namespace: ix.namespace,
	}, &out)
	return err
}

// Query returns the top-k records by similarity. Pinecone orders by
// score but makes no tie-break promise, so the deterministic tie-break
// (version desc, chunk ID asc) is applied here.
func (ix *Index) Query(
	ctx context.Context, vector []float32, k int, filter driven.QueryFilter,
) ([]driven.VectorHit, error) {
	req := queryRequest{
		Vector:          vector,
		TopK:            k,
		Namespace:       ix.namespace,
		IncludeMetadata: true,
	}
	if f := buildFilter(filter); len(f) > 0 {
		req.Filter = f
	}

	var resp queryResponse
	if err := ix.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		hits = append(hits, driven.VectorHit{
			ChunkID:  m.ID,
			Score:    m.Score,
			Metadata: decodeMetadata(m.Metadata),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metadata.Version != b.Metadata.Version {
			return a.Metadata.Version > b.Metadata.Version
		}
		return a.ChunkID < b.ChunkID
	})
	return hits, nil
}

// DeleteVersion removes all records of one document version via a
// metadata filter delete.
func (ix *Index) DeleteVersion(ctx context.Context, documentID string, version int) error {
	var out json.RawMessage
	return ix.post(ctx, "/vectors/delete", deleteRequest{
		Filter: map[string]any{
			"document_id": map[string]any{"$eq": documentID},
			"version":     map[string]any{"$eq": version},
		},
		Namespace: ix.namespace,
	}, &out)
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// post sends one JSON request and decodes the response. Network faults,
// 429 and 5xx responses surface as domain.ErrIndexUnavailable so callers
// retry with backoff; other failures are terminal.
func (ix *Index) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ix.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", ix.apiKey)

	resp, err := ix.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrIndexUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: pinecone returned status %d: %s",
			domain.ErrIndexUnavailable, resp.StatusCode, errMessage(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone error (status %d): %s", resp.StatusCode, errMessage(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errMessage extracts the error message from a Pinecone response body.
func errMessage(raw []byte) string {
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(raw)
}

// buildFilter translates a QueryFilter into Pinecone's filter syntax.
func buildFilter(filter driven.QueryFilter) map[string]any {
	f := make(map[string]any)
	if len(filter.Tags) > 0 {
		f["tags"] = map[string]any{"$in": filter.Tags}
	}
	if len(filter.DocumentIDs) > 0 {
		f["document_id"] = map[string]any{"$in": filter.DocumentIDs}
	}
	return f
}

// decodeMetadata converts Pinecone's loose JSON metadata back into
// RecordMetadata.
func decodeMetadata(m map[string]any) domain.RecordMetadata {
	meta := domain.RecordMetadata{}
	if v, ok := m["document_id"].(string); ok {
		meta.DocumentID = v
	}
	if v, ok := m["uri"].(string); ok {
		meta.URI = v
	}
	if v, ok := m["title"].(string); ok {
		meta.Title = v
	}
	if v, ok := m["version"].(float64); ok {
		meta.Version = int(v)
	}
	if v, ok := m["ordinal"].(float64); ok {
		meta.Ordinal = int(v)
	}
	if tags, ok := m["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				meta.Tags = append(meta.Tags, s)
			}
		}
	}
	return meta
}
