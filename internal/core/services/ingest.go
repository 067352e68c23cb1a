package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driving"
	"github.com/benefitsflow/benefits-rag/internal/logger"
	"github.com/benefitsflow/benefits-rag/internal/segmenter"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// Default ingestion tuning.
const (
	// DefaultIngestWorkers bounds document-level parallelism. Sized to a
	// typical embedding provider's concurrency allowance.
	DefaultIngestWorkers = 4

	// DefaultUpsertBatch is how many index records go per upsert call.
	DefaultUpsertBatch = 64
)

// IngestService orchestrates the batch ingestion pipeline:
// list -> segment -> embed -> upsert. Documents are processed by a
// bounded worker pool; failures are collected per document so one bad
// document never aborts the batch.
type IngestService struct {
	source    driven.DocumentSource
	segmenter *segmenter.Segmenter
	gateway   *EmbeddingGateway
	index     driven.VectorIndex
	docs      driven.DocumentStore

	workers     int
	upsertBatch int
}

// IngestOption configures the ingest service.
type IngestOption func(*IngestService)

// WithIngestWorkers sets the document-level worker pool size.
func WithIngestWorkers(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithUpsertBatch sets the index upsert batch size.
func WithUpsertBatch(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.upsertBatch = n
		}
	}
}

// NewIngestService creates an ingest service.
func NewIngestService(
	source driven.DocumentSource,
	seg *segmenter.Segmenter,
	gateway *EmbeddingGateway,
	index driven.VectorIndex,
	docs driven.DocumentStore,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		source:      source,
		segmenter:   seg,
		gateway:     gateway,
		index:       index,
		docs:        docs,
		workers:     DefaultIngestWorkers,
		upsertBatch: DefaultUpsertBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes all documents under the locator.
func (s *IngestService) Ingest(ctx context.Context, locator string) (*driving.IngestStats, error) {
	logger.Section("Ingestion")
	logger.Info("Ingesting from %s", locator)

	documents, err := s.source.List(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	logger.Debug("Source listed %d documents", len(documents))

	var (
		mu    sync.Mutex
		stats driving.IngestStats
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, s.workers)

	for i := range documents {
		doc := documents[i]

		select {
		case <-ctx.Done():
			wg.Wait()
			return &stats, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			indexed, skipped, err := s.ingestOne(ctx, &doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", doc.URI, err))
				logger.Warn("Failed to ingest %s: %v", doc.URI, err)
				return
			}
			stats.DocumentsIngested++
			stats.ChunksIndexed += indexed
			if skipped {
				stats.DocumentsSkipped++
			}
		}()
	}

	wg.Wait()
	logger.Info("Ingestion complete: %d documents (%d unchanged), %d chunks, %d errors",
		stats.DocumentsIngested, stats.DocumentsSkipped, stats.ChunksIndexed, len(stats.Errors))
	return &stats, nil
}

// ingestOne processes a single document: assign identity and version,
// segment, embed, upsert, then retire the superseded version.
func (s *IngestService) ingestOne(ctx context.Context, doc *domain.Document) (indexed int, skipped bool, err error) {
	latest, err := s.docs.GetLatestByURI(ctx, doc.URI)
	switch {
	case err == nil:
		if latest.Body == doc.Body {
			// Unchanged content keeps its version and its chunk IDs; the
			// index already holds this exact state.
			logger.Debug("Unchanged: %s (version %d)", doc.URI, latest.Version)
			return 0, true, nil
		}
		doc.ID = latest.ID
		doc.Version = latest.Version + 1
	case errors.Is(err, domain.ErrNotFound):
		doc.ID = uuid.NewString()
		doc.Version = 1
		latest = nil
	default:
		return 0, false, fmt.Errorf("lookup prior version: %w", err)
	}

	chunks, err := s.segmenter.Segment(doc)
	if err != nil {
		return 0, false, err
	}
	logger.Debug("Segmented %s into %d chunks (version %d)", doc.URI, len(chunks), doc.Version)

	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return 0, false, fmt.Errorf("save document: %w", err)
	}
	if err := s.docs.SaveChunks(ctx, chunks); err != nil {
		return 0, false, fmt.Errorf("save chunks: %w", err)
	}

	indexed, err = s.indexChunks(ctx, doc, chunks)
	if err != nil {
		return indexed, false, err
	}

	// Retire the superseded version only after the new one is fully
	// indexed, so queries never see a gap.
	if latest != nil {
		if err := s.index.DeleteVersion(ctx, doc.ID, latest.Version); err != nil {
			return indexed, false, fmt.Errorf("retire index version %d: %w", latest.Version, err)
		}
		if err := s.docs.DeleteVersion(ctx, doc.ID, latest.Version); err != nil {
			return indexed, false, fmt.Errorf("retire stored version %d: %w", latest.Version, err)
		}
	}

	return indexed, false, nil
}

// indexChunks embeds chunk texts and upserts records in batches. On
// embedding exhaustion, records for the vectors that did succeed are
// still upserted; the per-record idempotent replace makes the eventual
// retry safe.
func (s *IngestService) indexChunks(
	ctx context.Context, doc *domain.Document, chunks []domain.Chunk,
) (int, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, embedErr := s.gateway.Embed(ctx, texts, driven.EmbedRoleDocument)
	if embedErr != nil {
		var exhausted *domain.EmbeddingExhausted
		if !errors.As(embedErr, &exhausted) {
			return 0, fmt.Errorf("embed chunks: %w", embedErr)
		}
		vectors = exhausted.Vectors
		logger.Warn("Partial embedding for %s, persisting what succeeded", doc.URI)
	}

	records := make([]domain.IndexRecord, 0, len(chunks))
	for i, chunk := range chunks {
		if vectors[i] == nil {
			continue
		}
		records = append(records, domain.IndexRecord{
			ChunkID: chunk.ID,
			Vector:  vectors[i],
			Metadata: domain.RecordMetadata{
				DocumentID: doc.ID,
				URI:        doc.URI,
				Title:      doc.Title,
				Tags:       doc.Tags,
				Version:    doc.Version,
				Ordinal:    chunk.Ordinal,
			},
		})
	}

	indexed := 0
	for from := 0; from < len(records); from += s.upsertBatch {
		to := from + s.upsertBatch
		if to > len(records) {
			to = len(records)
		}
		if err := s.index.Upsert(ctx, records[from:to]); err != nil {
			return indexed, fmt.Errorf("upsert records: %w", err)
		}
		indexed += to - from
	}

	if embedErr != nil {
		return indexed, fmt.Errorf("embed chunks: %w", embedErr)
	}
	return indexed, nil
}
