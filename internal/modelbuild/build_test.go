package modelbuild

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/store"
)

type fakeStore struct {
	data map[string][]byte
}

func (f *fakeStore) List(ctx context.Context) ([]store.Artifact, error) { return nil, nil }
func (f *fakeStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	b, ok := f.data[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return b, nil
}
func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func TestNewCreatesScratchRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "scratch")
	b, err := New(&fakeStore{}, root)
	require.NoError(t, err)
	assert.Equal(t, root, b.ScratchRoot)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBuildRejectsMalformedArtifactName(t *testing.T) {
	b, err := New(&fakeStore{}, t.TempDir())
	require.NoError(t, err)

	_, err = b.Build(context.Background(), store.Artifact{Key: "not-a-valid-name"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestBuildWrapsFetchFailure(t *testing.T) {
	b, err := New(&fakeStore{data: map[string][]byte{}}, t.TempDir())
	require.NoError(t, err)

	_, err = b.Build(context.Background(), store.Artifact{Key: "tensorflow-m.tar.gz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrLoadError)
}
