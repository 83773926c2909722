// Package linker materializes stored mod files in game directories.
package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

// Linker places mod files at their deployed location. Place never replaces
// an existing file: it reports placed=false and leaves the destination alone.
type Linker interface {
	Place(src, dst string) (placed bool, err error)
	Remove(dst string) error
	Method() domain.LinkMethod
}

// New creates a linker for the given method
func New(method domain.LinkMethod) Linker {
	switch method {
	case domain.LinkHardlink:
		return NewHardlink()
	case domain.LinkSymlink:
		return NewSymlink()
	default:
		return NewCopy()
	}
}

func ensureParent(dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}
	return nil
}

// removeFile deletes dst; a missing file is not an error
func removeFile(dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}
