package core

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"
)

// ArchiveFormat identifies how an archive is unpacked
type ArchiveFormat string

const (
	FormatZip   ArchiveFormat = "zip"
	Format7z    ArchiveFormat = "7z"
	FormatRar   ArchiveFormat = "rar"
	FormatTar   ArchiveFormat = "tar"
	FormatTarGz ArchiveFormat = "tar.gz"
	FormatTarXz ArchiveFormat = "tar.xz"
)

// extract7zTimeout bounds a single 7z run (corrupted archives can hang it)
const extract7zTimeout = 5 * time.Minute

// Extractor unpacks mod archives into a staging directory
type Extractor struct {
	logger zerolog.Logger
	sevenZ string // Name or path of the 7z binary
}

// NewExtractor creates an extractor that logs to logger
func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger, sevenZ: "7z"}
}

// DetectFormat returns the archive format of filename, or "" when unsupported
func DetectFormat(filename string) ArchiveFormat {
	lower := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	}
	switch filepath.Ext(lower) {
	case ".zip":
		return FormatZip
	case ".7z":
		return Format7z
	case ".rar":
		return FormatRar
	case ".tar":
		return FormatTar
	default:
		return ""
	}
}

// CanExtract reports whether filename has a supported archive extension
func (e *Extractor) CanExtract(filename string) bool {
	return DetectFormat(filename) != ""
}

// Extract unpacks archivePath into destDir
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) error {
	format := DetectFormat(archivePath)
	if format == "" {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedArchive, filepath.Base(archivePath))
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	e.logger.Debug().Str("archive", archivePath).Str("format", string(format)).Msg("extracting")

	switch format {
	case FormatZip:
		return e.extractZip(archivePath, destDir)
	case Format7z, FormatRar:
		return e.extract7z(ctx, archivePath, destDir)
	default:
		return e.extractTarball(archivePath, destDir, format)
	}
}

func (e *Extractor) extractZip(archivePath, destDir string) (err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing zip: %w", cerr)
		}
	}()

	for _, f := range r.File {
		if err := extractZipEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, destDir string) error {
	destPath, err := safeJoin(destDir, f.Name)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0755)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	return writeEntry(destPath, rc, f.Mode())
}

func (e *Extractor) extractTarball(archivePath, destDir string, format ArchiveFormat) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading xz stream: %w", err)
		}
		r = xzr
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		destPath, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(destPath, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			e.logger.Debug().Str("entry", hdr.Name).Msg("skipping non-regular tar entry")
		}
	}
}

// writeEntry streams r into a new file at destPath
func writeEntry(destPath string, r io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", destPath, err)
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0200)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing file %s: %w", destPath, cerr)
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("writing file %s: %w", destPath, err)
	}
	return nil
}

// safeJoin joins an archive entry name onto destDir, rejecting entries that escape it
func safeJoin(destDir, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	destPath := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s", name)
	}
	return destPath, nil
}

// extract7z runs the system 7z binary, which also handles rar
func (e *Extractor) extract7z(ctx context.Context, archivePath, destDir string) error {
	bin, err := exec.LookPath(e.sevenZ)
	if err != nil {
		return fmt.Errorf("7z command not found: install p7zip-full to extract .7z and .rar files")
	}

	ctx, cancel := context.WithTimeout(ctx, extract7zTimeout)
	defer cancel()

	// -o takes the directory without a separating space
	cmd := exec.CommandContext(ctx, bin, "x", "-y", "-o"+destDir, archivePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("7z extraction timed out after %v", extract7zTimeout)
		}
		return fmt.Errorf("7z extraction failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
