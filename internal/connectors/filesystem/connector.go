// Package filesystem reads corpus documents from a local directory tree.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// textExtensions are the file types treated as corpus documents.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Connector lists plain-text and markdown documents from a directory.
// Subdirectory names become document tags, so a corpus laid out as
// calfresh/eligibility.md yields a document tagged "calfresh".
type Connector struct {
	rootPath string
}

// New creates a filesystem connector rooted at the given path.
func New(rootPath string) *Connector {
	return &Connector{rootPath: rootPath}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "filesystem"
}

// List reads all documents under the locator. An empty locator falls
// back to the connector root.
func (c *Connector) List(ctx context.Context, locator string) ([]domain.Document, error) {
	root := locator
	if root == "" {
		root = c.rootPath
	}
	if root == "" {
		return nil, fmt.Errorf("%w: no directory to list", domain.ErrInvalidInput)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	var docs []domain.Document
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip hidden directories such as .git.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		doc, err := c.readDocument(absRoot, path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", absRoot, err)
	}
	return docs, nil
}

// readDocument loads one file as a document.
func (c *Connector) readDocument(root, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}

	body := string(data)
	return domain.Document{
		URI:         "file://" + path,
		Title:       documentTitle(path, body),
		Body:        body,
		RetrievedAt: info.ModTime().UTC(),
		Tags:        pathTags(root, path),
	}, nil
}

// documentTitle derives a title from the first markdown heading, falling
// back to the file name without extension.
func documentTitle(path, body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		break
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pathTags turns the subdirectory path of a file into lowercase tags.
func pathTags(root, path string) []string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return nil
	}

	var tags []string
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		tags = append(tags, strings.ToLower(part))
	}
	return tags
}

// ResolveLocalPath converts a filesystem URI back to a local path.
// Handles file:// URIs and bare paths.
func ResolveLocalPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
