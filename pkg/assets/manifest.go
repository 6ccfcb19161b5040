// Package assets locates the files page modules are built from.
//
// A Source reads named files from a local directory, an S3 bucket or
// memory. Two manifests live in a source:
//
// The chunk manifest maps each page chunk to the fingerprinted script files
// the browser needs for it:
//
//	{
//	  "main": ["main.a1b2c3d4.js"],
//	  "about": ["vendor.e5f6.js", "about.9f8e.js"]
//	}
//
// The route manifest (YAML) declares template-backed routes; see
// LoadRouteManifest.
package assets

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Manifest maps chunk names to their script files. It is safe for
// concurrent use.
type Manifest struct {
	entries map[string][]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string][]string),
	}
}

// LoadManifest reads a JSON chunk manifest from src.
func LoadManifest(ctx context.Context, src Source, name string) (*Manifest, error) {
	data, err := src.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}

	var entries map[string][]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.New("E202").WithDetail("chunk manifest " + name).Wrap(err)
	}
	if entries == nil {
		entries = make(map[string][]string)
	}
	return &Manifest{entries: entries}, nil
}

// Files returns the files for a chunk, or nil.
func (m *Manifest) Files(chunk string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := m.entries[chunk]
	out := make([]string, len(files))
	copy(out, files)
	return out
}

// Has returns true if the manifest contains the chunk.
func (m *Manifest) Has(chunk string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[chunk]
	return ok
}

// Set adds or replaces a chunk.
func (m *Manifest) Set(chunk string, files ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[chunk] = files
}

// Len returns the number of chunks.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Scripts returns the files for the given chunks in order, without
// duplicates. Unknown chunks are skipped.
func (m *Manifest) Scripts(chunks ...string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, chunk := range chunks {
		for _, f := range m.entries[chunk] {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
