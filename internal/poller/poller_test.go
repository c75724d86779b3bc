package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/artifact"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/store"
	"github.com/aiserve/modelserver/internal/tensor"
)

type fakeStore struct {
	mu        sync.Mutex
	artifacts []store.Artifact
}

func (s *fakeStore) List(ctx context.Context) ([]store.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out, nil
}

func (s *fakeStore) Fetch(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error)  { return true, nil }

func (s *fakeStore) set(arts []store.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = arts
}

type fakePredictor struct{ fw predictor.Framework }

func (f *fakePredictor) Predict(ctx context.Context, in *tensor.Input) (*predictor.Output, error) {
	return &predictor.Output{}, nil
}
func (f *fakePredictor) Framework() predictor.Framework { return f.fw }
func (f *fakePredictor) Close() error                   { return nil }

// buildCounting mimics modelbuild.Builder.Build closely enough to
// exercise real registry keys: it derives Key/Framework from the
// artifact name rather than leaving them zero-valued.
func buildCounting(calls *int32, mu *sync.Mutex) Builder {
	return func(ctx context.Context, art store.Artifact) (*registry.Entry, error) {
		mu.Lock()
		*calls++
		mu.Unlock()
		name, err := artifact.Parse(art.Key)
		if err != nil {
			return nil, err
		}
		return &registry.Entry{
			Key:       registry.Key(name.Model),
			Framework: name.Framework,
			Version:   art.ETagOrMTime,
			Ref:       predictor.NewRef(&fakePredictor{fw: name.Framework}),
		}, nil
	}
}

func TestReconcileLoadsNewArtifactsAndEvictsMissingOnes(t *testing.T) {
	st := &fakeStore{artifacts: []store.Artifact{
		{Key: "tensorflow-penguins.tar.gz", ETagOrMTime: "v1"},
	}}
	reg := registry.New()
	var calls int32
	var mu sync.Mutex
	p := New(st, reg, buildCounting(&calls, &mu), time.Hour)

	require.NoError(t, p.Reconcile(context.Background()))
	assert.True(t, reg.Exists(registry.Key("penguins")))

	st.set(nil)
	require.NoError(t, p.Reconcile(context.Background()))
	assert.False(t, reg.Exists(registry.Key("penguins")))
}

func TestReconcileSkipsUnchangedVersion(t *testing.T) {
	st := &fakeStore{artifacts: []store.Artifact{
		{Key: "tensorflow-penguins.tar.gz", ETagOrMTime: "v1"},
	}}
	reg := registry.New()
	var calls int32
	var mu sync.Mutex
	p := New(st, reg, buildCounting(&calls, &mu), time.Hour)

	require.NoError(t, p.Reconcile(context.Background()))
	require.NoError(t, p.Reconcile(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), calls, "unchanged artifact must not be rebuilt")
}

func TestReconcileSkipsArtifactsWithUnrecognizedNames(t *testing.T) {
	st := &fakeStore{artifacts: []store.Artifact{
		{Key: "not-a-valid-name", ETagOrMTime: "v1"},
	}}
	reg := registry.New()
	var calls int32
	var mu sync.Mutex
	p := New(st, reg, buildCounting(&calls, &mu), time.Hour)

	require.NoError(t, p.Reconcile(context.Background()))
	assert.Equal(t, int32(0), calls)
	assert.Empty(t, reg.List())
}

func TestReconcileSkipsCrossFrameworkDuplicateNameSameCycle(t *testing.T) {
	st := &fakeStore{artifacts: []store.Artifact{
		{Key: "tensorflow-shared.tar.gz", ETagOrMTime: "v1"},
		{Key: "torch-shared.tar.gz", ETagOrMTime: "v1"},
	}}
	reg := registry.New()
	var calls int32
	var mu sync.Mutex
	p := New(st, reg, buildCounting(&calls, &mu), time.Hour)

	require.NoError(t, p.Reconcile(context.Background()))

	mu.Lock()
	assert.Equal(t, int32(1), calls, "only the first artifact for a duplicated name is built")
	mu.Unlock()

	entry, ok := reg.Lookup(registry.Key("shared"))
	require.True(t, ok)
	assert.Equal(t, predictor.TensorFlow, entry.Framework, "list() order decides the winner; tensorflow was listed first")
}
