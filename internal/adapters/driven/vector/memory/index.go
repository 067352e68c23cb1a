// Package memory provides an in-memory vector index using brute-force
// cosine similarity. Suitable for tests and small corpora; an optional
// snapshot file gives it persistence across runs.
package memory

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// record is a stored vector with its precomputed norm.
type record struct {
	Rec  domain.IndexRecord
	Norm float64
}

// Index is an in-memory vector index. All mutation goes through Upsert
// and DeleteVersion under a single write lock, so replacement is atomic
// per record: a query observes either the old record or the new one,
// never a partial write.
type Index struct {
	mu      sync.RWMutex
	dims    int
	records map[string]record
}

// New creates an in-memory index for vectors of the given dimensionality.
func New(dims int) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	return &Index{
		dims:    dims,
		records: make(map[string]record),
	}, nil
}

// Upsert inserts or replaces records by chunk ID.
func (ix *Index) Upsert(_ context.Context, records []domain.IndexRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) != ix.dims {
			return fmt.Errorf("%w: record %s has %d dimensions, index expects %d",
				domain.ErrInvalidInput, rec.ChunkID, len(rec.Vector), ix.dims)
		}
		vec := make([]float32, ix.dims)
		copy(vec, rec.Vector)
		stored := rec
		stored.Vector = vec
		ix.records[rec.ChunkID] = record{Rec: stored, Norm: norm(vec)}
	}
	return nil
}

// Query returns the top-k records by cosine similarity. Ties break by
// most recent document version, then lexicographically by chunk ID.
func (ix *Index) Query(
	_ context.Context, vector []float32, k int, filter driven.QueryFilter,
) ([]driven.VectorHit, error) {
	if len(vector) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(vector), ix.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("%w: zero query vector", domain.ErrInvalidInput)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(ix.records))
	for _, rec := range ix.records {
		if !matches(rec.Rec.Metadata, filter) {
			continue
		}
		if rec.Norm == 0 {
			continue
		}
		var dot float64
		for i, v := range rec.Rec.Vector {
			dot += float64(v) * float64(vector[i])
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:  rec.Rec.ChunkID,
			Score:    dot / (rec.Norm * queryNorm),
			Metadata: rec.Rec.Metadata,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metadata.Version != b.Metadata.Version {
			return a.Metadata.Version > b.Metadata.Version
		}
		return a.ChunkID < b.ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteVersion removes all records of one document version.
func (ix *Index) DeleteVersion(_ context.Context, documentID string, version int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for id, rec := range ix.records {
		if rec.Rec.Metadata.DocumentID == documentID && rec.Rec.Metadata.Version == version {
			delete(ix.records, id)
		}
	}
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	return nil
}

// Len returns the number of stored records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// snapshot is the on-disk format.
type snapshot struct {
	Dims    int
	Records []domain.IndexRecord
}

// Save writes the index contents to path. The write goes through a
// temporary file and rename, so a crashed save never corrupts an
// existing snapshot.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	snap := snapshot{Dims: ix.dims, Records: make([]domain.IndexRecord, 0, len(ix.records))}
	for _, rec := range ix.records {
		snap.Records = append(snap.Records, rec.Rec)
	}
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load replaces the index contents from a snapshot file. A snapshot that
// does not decode, or whose dimensionality disagrees with the index,
// surfaces domain.ErrIndexCorrupt: the caller must re-ingest rather than
// retry.
func (ix *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to load
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("%w: snapshot %s does not decode: %v", domain.ErrIndexCorrupt, path, err)
	}
	if snap.Dims != ix.dims {
		return fmt.Errorf("%w: snapshot has %d dimensions, index expects %d",
			domain.ErrIndexCorrupt, snap.Dims, ix.dims)
	}

	records := make(map[string]record, len(snap.Records))
	for _, rec := range snap.Records {
		if len(rec.Vector) != snap.Dims {
			return fmt.Errorf("%w: record %s has %d dimensions",
				domain.ErrIndexCorrupt, rec.ChunkID, len(rec.Vector))
		}
		records[rec.ChunkID] = record{Rec: rec, Norm: norm(rec.Vector)}
	}

	ix.mu.Lock()
	ix.records = records
	ix.mu.Unlock()
	return nil
}

// matches applies the metadata filter.
func matches(meta domain.RecordMetadata, filter driven.QueryFilter) bool {
	if len(filter.DocumentIDs) > 0 {
		ok := false
		for _, id := range filter.DocumentIDs {
			if meta.DocumentID == id {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(filter.Tags) > 0 {
		for _, want := range filter.Tags {
			for _, tag := range meta.Tags {
				if tag == want {
					return true
				}
			}
		}
		return false
	}
	return true
}

// norm is the Euclidean length of a vector.
func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
