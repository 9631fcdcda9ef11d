package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func TestScanner(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	writeFiles(t, tempDir, map[string]string{
		"a.own":             "let a",
		"b.own.yaml":        "ops: []",
		"c.own.yml":         "ops: []",
		"notes.txt":         "This is a text file",
		"plain.yaml":        "name: x",
		"subdir/d.own":      "let d",
		".cache/hidden.own": "let h",
		"subdir/.git/x.own": "let x",
	})

	scannedFiles, err := New(tempDir).Scan()
	require.NoError(t, err)

	var paths []string
	for _, file := range scannedFiles {
		paths = append(paths, file.Path)
		assert.Greater(t, file.Size, int64(0), "File size should be greater than 0")
	}
	assert.Equal(t, []string{
		filepath.Join(tempDir, "a.own"),
		filepath.Join(tempDir, "b.own.yaml"),
		filepath.Join(tempDir, "c.own.yml"),
		filepath.Join(tempDir, "subdir/d.own"),
	}, paths)
}

func TestScanner_Suffixes(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	writeFiles(t, tempDir, map[string]string{
		"a.own":      "let a",
		"b.own.yaml": "ops: []",
	})

	paths, err := New(tempDir, ".own").Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(tempDir, "a.own")}, paths)
}

func TestScanner_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "absent")).Scan()
	assert.Error(t, err)
}
