package driving

import "context"

// Ingestor runs the batch ingestion pipeline: list documents, segment,
// embed, index.
type Ingestor interface {
	// Ingest processes all documents under the locator. Failures are
	// aggregated per document; one bad document never aborts the batch.
	Ingest(ctx context.Context, locator string) (*IngestStats, error)
}

// IngestStats summarises one ingestion run.
type IngestStats struct {
	// DocumentsIngested counts documents processed successfully,
	// including unchanged documents that were skipped as up to date.
	DocumentsIngested int

	// DocumentsSkipped counts documents whose content was unchanged.
	DocumentsSkipped int

	// ChunksIndexed counts chunks upserted into the vector index.
	ChunksIndexed int

	// Errors lists per-document failure descriptions.
	Errors []string
}
