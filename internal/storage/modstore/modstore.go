// Package modstore keeps the files of every mod a profile owns.
//
// Layout: <root>/<profile>/mods/<mod>/... for regular mods and
// <root>/<profile>/rootMods/<mod>/... for root mods. Profile config files
// live in <root>/<profile>/config.
package modstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"

	"golang.org/x/sync/errgroup"
)

// Store manages the per-profile mod directories
type Store struct {
	root string
}

// New creates a store rooted at the profiles directory
func New(root string) *Store {
	return &Store{root: root}
}

// ModsDir returns the directory holding a profile's root or regular mods
func (s *Store) ModsDir(profile string, root bool) string {
	if root {
		return filepath.Join(s.root, profile, "rootMods")
	}
	return filepath.Join(s.root, profile, "mods")
}

// ModPath returns the directory of one stored mod
func (s *Store) ModPath(profile string, root bool, mod string) string {
	return filepath.Join(s.ModsDir(profile, root), mod)
}

// ConfigDir returns the directory of a profile's managed game config files
func (s *Store) ConfigDir(profile string) string {
	return filepath.Join(s.root, profile, "config")
}

// Exists checks if a mod is stored
func (s *Store) Exists(profile string, root bool, mod string) bool {
	info, err := os.Stat(s.ModPath(profile, root, mod))
	return err == nil && info.IsDir()
}

// ListFiles returns the files of a stored mod relative to its directory, sorted.
// With lowerDirs set, directory components are lower-cased.
func (s *Store) ListFiles(profile string, root bool, mod string, lowerDirs bool) ([]string, error) {
	files, err := WalkFiles(s.ModPath(profile, root, mod))
	if err != nil {
		return nil, fmt.Errorf("listing stored files of %s: %w", mod, err)
	}
	if lowerDirs {
		for i, f := range files {
			files[i] = pathutil.LowerDirs(f)
		}
		sort.Strings(files)
	}
	return files, nil
}

// WalkFiles lists the regular files and symlinks under dir relative to it, sorted
func WalkFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Delete removes a stored mod
func (s *Store) Delete(profile string, root bool, mod string) error {
	if err := os.RemoveAll(s.ModPath(profile, root, mod)); err != nil {
		return fmt.Errorf("deleting stored mod: %w", err)
	}
	return nil
}

// Rename moves a stored mod to a new name
func (s *Store) Rename(profile string, root bool, oldName, newName string) error {
	if s.Exists(profile, root, newName) {
		return fmt.Errorf("mod %s already exists", newName)
	}
	if err := os.Rename(s.ModPath(profile, root, oldName), s.ModPath(profile, root, newName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrModNotFound, oldName)
		}
		return fmt.Errorf("renaming stored mod: %w", err)
	}
	return nil
}

// Size returns the total size of a stored mod's files
func (s *Store) Size(profile string, root bool, mod string) (int64, error) {
	var total int64
	err := filepath.WalkDir(s.ModPath(profile, root, mod), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("calculating mod size: %w", err)
	}
	return total, nil
}

// Commit copies files into a stored mod. files maps absolute source paths to
// destinations relative to the mod directory. REPLACE clears the mod first,
// OVERWRITE replaces clashing files and ADD keeps them.
func (s *Store) Commit(ctx context.Context, profile string, root bool, mod string, files map[string]string, strategy domain.MergeStrategy) error {
	dest := s.ModPath(profile, root, mod)
	if strategy == domain.MergeReplace {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("clearing stored mod: %w", err)
		}
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating stored mod dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for src, rel := range files {
		src, target := src, filepath.Join(dest, rel)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return copyFile(src, target, strategy != domain.MergeAdd)
		})
	}
	return g.Wait()
}

// copyFile copies src to dst. Without overwrite an existing dst is kept.
func copyFile(src, dst string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	out, err := os.OpenFile(dst, flags, info.Mode().Perm()|0200)
	if errors.Is(err, fs.ErrExist) && !overwrite {
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}
