// Package completion records which source URLs have been fully downloaded, so that later runs can skip them.
//
// A Log is append-only: entries are never removed or rewritten. Two backends exist, a plain text file with one URL
// per line (the default) and a bbolt database, selected by Open from the path's extension.
package completion

import (
	"path/filepath"
	"strings"

	"github.com/alanbriolat/loom-archiver/generic"
)

type Log interface {
	// Load returns every URL recorded so far. A log that does not exist yet is empty, not an error.
	Load() (generic.Set[string], error)
	// MarkCompleted records sourceURL, creating the log if needed. Safe for concurrent use.
	MarkCompleted(sourceURL string) error
	Close() error
}

// Open returns a bbolt-backed Log for paths ending in ".db" or ".bolt", and a text Log otherwise.
func Open(path string) (Log, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".bolt":
		return OpenBolt(path)
	default:
		return OpenText(path), nil
	}
}
