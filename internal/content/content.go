// Package content implements the minimal content-writer glue the spec
// treats as an external collaborator (spec.md section 1: "The content
// writer (persists extracted text to disk by content hash)"): a flat,
// sha256-sharded filesystem store, not a search index. Grounded on the
// teacher's internal/storage sharding conventions and, more directly, on
// this repo's own frontierstore.Store.Path 2-hex-char sharding scheme.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists extracted page text to {data_root}/content/{xx}/{sha256(url)}.txt
// (spec.md section 6: "Content storage").
type Writer struct {
	dataRoot string
}

// New builds a Writer rooted at dataRoot. The content directory is
// created if absent.
func New(dataRoot string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dataRoot, "content"), 0o755); err != nil {
		return nil, fmt.Errorf("content: create data root: %w", err)
	}
	return &Writer{dataRoot: dataRoot}, nil
}

// Path returns the on-disk path content for rawURL would be (or was)
// written to, independent of whether it exists yet.
func (w *Writer) Path(rawURL string) string {
	return Path(w.dataRoot, rawURL)
}

// Path computes {data_root}/content/{xx}/{sha256(url)}.txt without
// requiring a Writer instance, for callers (e.g. resume diagnostics) that
// only need the path shape.
func Path(dataRoot, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	hash := hex.EncodeToString(sum[:])
	shard := hash[:2]
	return filepath.Join(dataRoot, "content", shard, hash+".txt")
}

// Save writes text to disk under rawURL's content-addressed path and
// returns the path written, for use as the content_ref passed to
// mark_visited (spec.md section 4: "mark_visited(url, status,
// content_ref, when)").
func (w *Writer) Save(_ context.Context, rawURL, text string) (string, error) {
	path := w.Path(rawURL)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("content: create shard dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("content: write %s: %w", path, err)
	}
	return path, nil
}
