package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/benefitsflow/benefits-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.benefitsrag/data/corpus.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".benefitsrag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores a document version. Saving the same (ID, Version)
// pair again replaces it wholesale.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	retrievedAt := doc.RetrievedAt
	if retrievedAt.IsZero() {
		retrievedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, uri, title, body, version, retrieved_at, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			body = excluded.body,
			retrieved_at = excluded.retrieved_at,
			tags = excluded.tags
	`, doc.ID, doc.URI, doc.Title, doc.Body, doc.Version, retrievedAt, string(tagsJSON))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks stores the chunks of one document version. Existing chunks of
// that version are replaced wholesale.
func (s *Store) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	docID, version := chunks[0].DocumentID, chunks[0].Version
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ? AND version = ?", docID, version,
	); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, version, ordinal, text, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Version, c.Ordinal, c.Text, c.Start, c.End,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetDocument retrieves the latest version of a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uri, title, body, version, retrieved_at, tags
		FROM documents WHERE id = ?
		ORDER BY version DESC LIMIT 1
	`, id)
	return scanDocument(row)
}

// GetLatestByURI retrieves the latest document version for a URI.
func (s *Store) GetLatestByURI(ctx context.Context, uri string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uri, title, body, version, retrieved_at, tags
		FROM documents WHERE uri = ?
		ORDER BY version DESC LIMIT 1
	`, uri)
	return scanDocument(row)
}

// GetChunk retrieves a specific chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version, ordinal, text, start_offset, end_offset
		FROM chunks WHERE id = ?
	`, id)

	var c domain.Chunk
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Version, &c.Ordinal, &c.Text, &c.Start, &c.End); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &c, nil
}

// GetChunks retrieves all chunks of one document version, ordered by ordinal.
func (s *Store) GetChunks(ctx context.Context, documentID string, version int) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version, ordinal, text, start_offset, end_offset
		FROM chunks WHERE document_id = ? AND version = ?
		ORDER BY ordinal
	`, documentID, version)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Version, &c.Ordinal, &c.Text, &c.Start, &c.End); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteVersion removes one document version and its chunks.
func (s *Store) DeleteVersion(ctx context.Context, documentID string, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ? AND version = ?", documentID, version,
	); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND version = ?", documentID, version,
	); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return tx.Commit()
}

// scanDocument reads one document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var tagsJSON string
	var retrievedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.URI, &doc.Title, &doc.Body, &doc.Version, &retrievedAt, &tagsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if retrievedAt.Valid {
		doc.RetrievedAt = retrievedAt.Time
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	return &doc, nil
}
