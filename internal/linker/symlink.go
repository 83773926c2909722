package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

// SymlinkLinker places files as symbolic links to the stored copy
type SymlinkLinker struct{}

// NewSymlink creates a new symlink linker
func NewSymlink() *SymlinkLinker {
	return &SymlinkLinker{}
}

// Place symlinks dst to src when dst does not exist yet
func (l *SymlinkLinker) Place(src, dst string) (bool, error) {
	if err := ensureParent(dst); err != nil {
		return false, err
	}

	target, err := filepath.Abs(src)
	if err != nil {
		return false, fmt.Errorf("resolving source: %w", err)
	}
	if err := os.Symlink(target, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("creating symlink: %w", err)
	}
	return true, nil
}

// Remove deletes the symlink at dst. Regular files are refused so a user's
// own file that replaced the link is never lost.
func (l *SymlinkLinker) Remove(dst string) error {
	info, err := os.Lstat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking file: %w", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("not a symlink: %s", dst)
	}
	return removeFile(dst)
}

// Method returns the link method
func (l *SymlinkLinker) Method() domain.LinkMethod {
	return domain.LinkSymlink
}
