// Package fileid derives stable document identity for ingested files: a
// path-based document ID and a content hash for change detection.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// FileDocID returns a stable document ID for the given path. The path is
// cleaned first, so spellings that name the same file yield the same ID.
// Re-ingesting a file therefore replaces its chunks instead of duplicating
// them, and delete-by-path resolves to the same document.
func FileDocID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(sum[:])
}

// ContentHash returns the hex SHA-256 of the raw file content. Stored on the
// document record; ingestion compares it to skip unchanged files.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
