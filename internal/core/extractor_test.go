package core_test

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"
	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func createTestZip(t *testing.T, path string, files map[string]string) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func writeTar(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tw := tar.NewWriter(w)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func newExtractor() *core.Extractor {
	return core.NewExtractor(zerolog.Nop())
}

func TestExtractor_Extract_Zip(t *testing.T) {
	destDir := t.TempDir()
	zipPath := createTestZip(t, filepath.Join(t.TempDir(), "test.zip"), map[string]string{
		"readme.txt":          "This is a readme file",
		"Data/plugin.esp":     "plugin",
		"Data/meshes/a.nif":   "nested file content",
		"Data/meshes/":        "",
		"Data/textures/x.dds": "texture",
	})

	require.NoError(t, newExtractor().Extract(context.Background(), zipPath, destDir))

	content, err := os.ReadFile(filepath.Join(destDir, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "This is a readme file", string(content))

	content, err = os.ReadFile(filepath.Join(destDir, "Data", "meshes", "a.nif"))
	require.NoError(t, err)
	assert.Equal(t, "nested file content", string(content))
}

func TestExtractor_Extract_TarXz(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "mod.tar.xz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	xw, err := xz.NewWriter(f)
	require.NoError(t, err)
	writeTar(t, xw, map[string]string{"Data/a.esm": "master"})
	require.NoError(t, xw.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	require.NoError(t, newExtractor().Extract(context.Background(), archive, destDir))

	content, err := os.ReadFile(filepath.Join(destDir, "Data", "a.esm"))
	require.NoError(t, err)
	assert.Equal(t, "master", string(content))
}

func TestExtractor_Extract_Tar(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "mod.tar")
	f, err := os.Create(archive)
	require.NoError(t, err)
	writeTar(t, f, map[string]string{"readme.txt": "hi"})
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	require.NoError(t, newExtractor().Extract(context.Background(), archive, destDir))
	assert.FileExists(t, filepath.Join(destDir, "readme.txt"))
}

func TestExtractor_Extract_Unsupported(t *testing.T) {
	err := newExtractor().Extract(context.Background(), "/tmp/mod.exe", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedArchive)
}

func TestExtractor_Extract_InvalidZip(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "invalid.zip")
	require.NoError(t, os.WriteFile(invalidPath, []byte("not a zip file"), 0644))

	err := newExtractor().Extract(context.Background(), invalidPath, t.TempDir())
	require.Error(t, err)
}

func TestExtractor_Extract_ZipSlipRejected(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "malicious.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: "../../escape.txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("malicious content"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := filepath.Join(t.TempDir(), "a", "b")
	err = newExtractor().Extract(context.Background(), zipPath, destDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected core.ArchiveFormat
	}{
		{"mod.zip", core.FormatZip},
		{"mod.ZIP", core.FormatZip},
		{"mod.7z", core.Format7z},
		{"mod.rar", core.FormatRar},
		{"mod.tar", core.FormatTar},
		{"mod.tar.gz", core.FormatTarGz},
		{"mod.tgz", core.FormatTarGz},
		{"mod.TAR.XZ", core.FormatTarXz},
		{"mod.txt", ""},
		{"mod", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, core.DetectFormat(tt.filename))
			assert.Equal(t, tt.expected != "", newExtractor().CanExtract(tt.filename))
		})
	}
}
