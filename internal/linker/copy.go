package linker

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

// CopyLinker places files by copying them
type CopyLinker struct{}

// NewCopy creates a new copy linker
func NewCopy() *CopyLinker {
	return &CopyLinker{}
}

// Place copies src to dst when dst does not exist yet
func (l *CopyLinker) Place(src, dst string) (bool, error) {
	if err := ensureParent(dst); err != nil {
		return false, err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("opening source: %w", err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}

	// O_EXCL makes the existence check and the create a single step
	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return false, fmt.Errorf("copying file: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(dst)
		return false, fmt.Errorf("closing destination: %w", err)
	}
	return true, nil
}

// Remove deletes the copy at dst
func (l *CopyLinker) Remove(dst string) error {
	return removeFile(dst)
}

// Method returns the link method
func (l *CopyLinker) Method() domain.LinkMethod {
	return domain.LinkCopy
}
