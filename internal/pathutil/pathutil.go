// Package pathutil holds the path comparison policy shared by dependency
// resolution, import and deployment.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize converts both separator styles to the platform separator and cleans the path.
// An empty path stays empty.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = filepath.Clean(filepath.FromSlash(p))
	if p == "." {
		return ""
	}
	return p
}

// Policy decides whether two paths name the same file
type Policy struct {
	FoldCase bool
}

// Key returns the comparison key of a path under this policy
func (p Policy) Key(path string) string {
	path = Normalize(path)
	if p.FoldCase {
		return strings.ToLower(path)
	}
	return path
}

// Equal reports whether a and b name the same path under this policy
func (p Policy) Equal(a, b string) bool {
	return p.Key(a) == p.Key(b)
}

// HasPrefixDir reports whether path lies inside dir (or equals it) under this policy
func (p Policy) HasPrefixDir(path, dir string) bool {
	pk, dk := p.Key(path), p.Key(dir)
	if dk == "" {
		return true
	}
	return pk == dk || strings.HasPrefix(pk, dk+string(filepath.Separator))
}

// LowerDirs lower-cases every directory component of a relative path, keeping the file name
func LowerDirs(rel string) string {
	rel = Normalize(rel)
	dir, file := filepath.Split(rel)
	if dir == "" {
		return file
	}
	return filepath.Join(strings.ToLower(dir), file)
}

// TopLevel returns the first component of a relative path
func TopLevel(rel string) string {
	rel = Normalize(rel)
	if idx := strings.IndexRune(rel, filepath.Separator); idx >= 0 {
		return rel[:idx]
	}
	return rel
}

// StripDir removes dir from the front of rel. ok is false when rel is not inside dir.
func (p Policy) StripDir(rel, dir string) (string, bool) {
	rel = Normalize(rel)
	dir = Normalize(dir)
	if dir == "" {
		return rel, true
	}
	if !p.HasPrefixDir(rel, dir) || len(rel) <= len(dir) {
		return "", false
	}
	return rel[len(dir)+1:], true
}
