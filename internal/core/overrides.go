package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"
)

// configBackupSuffix marks a game config file moved aside by a deploy
const configBackupSuffix = ".sml_bak"

// applyConfigFiles writes every file of a profile's config directory into the
// game config directory. Files already there are moved to <file>.sml_bak first.
// Returns the absolute paths written.
func applyConfigFiles(srcDir, configDir string) ([]string, error) {
	files, err := modstore.WalkFiles(srcDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing profile config files: %w", err)
	}

	written := make([]string, 0, len(files))
	for _, rel := range files {
		dest := filepath.Join(configDir, rel)
		if err := backupConfigFile(dest); err != nil {
			return written, err
		}
		if err := copyConfigFile(filepath.Join(srcDir, rel), dest); err != nil {
			return written, err
		}
		written = append(written, dest)
	}
	return written, nil
}

// backupConfigFile moves an existing game config file aside, unless a backup already exists
func backupConfigFile(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	backup := path + configBackupSuffix
	if _, err := os.Lstat(backup); err == nil {
		return nil
	}
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("backing up config file %s: %w", path, err)
	}
	return nil
}

// restoreConfigBackup moves <path>.sml_bak back to path when present
func restoreConfigBackup(path string) (bool, error) {
	backup := path + configBackupSuffix
	if _, err := os.Lstat(backup); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Rename(backup, path); err != nil {
		return false, fmt.Errorf("restoring config file %s: %w", path, err)
	}
	return true, nil
}

func copyConfigFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening profile config file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("writing config file %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing config file %s: %w", dst, cerr)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("writing config file %s: %w", dst, err)
	}
	return nil
}
