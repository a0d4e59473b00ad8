package etl

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source turns an uploaded file into rows.
// Implementations live in etl/sources/, one file per format.

// SourceSpec describes a file format: its name and the extensions it claims.
type SourceSpec struct {
	Format     string   `json:"format"`
	Label      string   `json:"label"`
	Extensions []string `json:"extensions"`
}

// Source is the interface every file format must implement.
type Source interface {
	// Spec returns metadata about this format.
	Spec() SourceSpec

	// Read parses r into rows, in file order. The first row of the file
	// is the header. Malformed content is reported as *ParseError.
	Read(ctx context.Context, r io.Reader) ([]Row, error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source under each of its extensions.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range s.Spec().Extensions {
		registry[strings.ToLower(ext)] = s
	}
}

// Extension returns the lowercase extension of fileName without the dot.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// SourceFor picks the source for fileName by extension.
func SourceFor(fileName string) (Source, error) {
	ext := Extension(fileName)
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[ext]
	if !ok {
		return nil, &UnsupportedFormatError{FileName: fileName, Extension: ext}
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by format.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	seen := map[string]bool{}
	var specs []SourceSpec
	for _, s := range registry {
		spec := s.Spec()
		if seen[spec.Format] {
			continue
		}
		seen[spec.Format] = true
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Format < specs[j].Format })
	return specs
}
