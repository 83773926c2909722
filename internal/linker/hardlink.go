package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

// HardlinkLinker places files as hard links to the stored copy
type HardlinkLinker struct{}

// NewHardlink creates a new hardlink linker
func NewHardlink() *HardlinkLinker {
	return &HardlinkLinker{}
}

// Place hard links dst to src when dst does not exist yet
func (l *HardlinkLinker) Place(src, dst string) (bool, error) {
	if err := ensureParent(dst); err != nil {
		return false, err
	}

	if err := os.Link(src, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("creating hardlink: %w", err)
	}
	return true, nil
}

// Remove deletes the link at dst. The stored file keeps its own link.
func (l *HardlinkLinker) Remove(dst string) error {
	return removeFile(dst)
}

// Method returns the link method
func (l *HardlinkLinker) Method() domain.LinkMethod {
	return domain.LinkHardlink
}
