package driven

import (
	"context"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
)

// DocumentSource lists documents from a corpus location. The ingest
// service assigns identity and versioning; a source only needs to return
// URI, title, body, tags and retrieval time.
type DocumentSource interface {
	// List reads all documents under the given locator. A locator is
	// source-specific (a directory path for the filesystem source).
	List(ctx context.Context, locator string) ([]domain.Document, error)
}
