package unpack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/apperr"
)

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestToScratchExtractsFilesIntoFreshDir(t *testing.T) {
	root := t.TempDir()
	data := buildArchive(t, map[string]string{
		"saved_model.pb":        "proto-bytes",
		"variables/variables.d": "weights",
	})

	dest, err := ToScratch(root, data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dest, root))

	got, err := os.ReadFile(filepath.Join(dest, "saved_model.pb"))
	require.NoError(t, err)
	assert.Equal(t, "proto-bytes", string(got))

	got2, err := os.ReadFile(filepath.Join(dest, "variables/variables.d"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(got2))
}

func TestToScratchGivesEachCallItsOwnDirectory(t *testing.T) {
	root := t.TempDir()
	data := buildArchive(t, map[string]string{"f": "x"})

	d1, err := ToScratch(root, data)
	require.NoError(t, err)
	d2, err := ToScratch(root, data)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestToScratchRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	data := buildArchive(t, map[string]string{"../escape.txt": "evil"})

	_, err := ToScratch(root, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrLoadError)
}

func TestToScratchRejectsGarbageInput(t *testing.T) {
	root := t.TempDir()
	_, err := ToScratch(root, []byte("not a gzip stream"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrLoadError)
}
