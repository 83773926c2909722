package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CaseResolver maps relative paths onto the spelling already present on disk,
// so "Textures/a.dds" lands in an existing "textures" directory. Names it
// hands out are remembered, keeping concurrent callers consistent with each other.
// The zero value is not usable; call NewCaseResolver.
type CaseResolver struct {
	mu   sync.Mutex
	dirs map[string]map[string]string // dir -> lower-cased name -> actual name
}

// NewCaseResolver creates an empty resolver
func NewCaseResolver() *CaseResolver {
	return &CaseResolver{dirs: make(map[string]map[string]string)}
}

// Resolve returns rel with every component replaced by the existing entry of
// the same name (ignoring case) under base. Components with no match are kept.
func (c *CaseResolver) Resolve(base, rel string) string {
	rel = Normalize(rel)
	if rel == "" {
		return rel
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	parts := strings.Split(rel, string(filepath.Separator))
	dir := filepath.Clean(base)
	for i, part := range parts {
		names := c.listing(dir)
		key := strings.ToLower(part)
		if actual, ok := names[key]; ok {
			parts[i] = actual
		} else {
			names[key] = part
		}
		dir = filepath.Join(dir, parts[i])
	}
	return filepath.Join(parts...)
}

// listing returns the cached names of dir, reading it on first use.
// A missing directory yields an empty listing.
func (c *CaseResolver) listing(dir string) map[string]string {
	if names, ok := c.dirs[dir]; ok {
		return names
	}
	names := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			key := strings.ToLower(e.Name())
			// Prefer an exact lower-case spelling when several variants exist
			if _, taken := names[key]; !taken || e.Name() == key {
				names[key] = e.Name()
			}
		}
	}
	c.dirs[dir] = names
	return names
}
