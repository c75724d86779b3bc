package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/poller"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/store"
)

type fakeStore struct {
	artifacts []store.Artifact
	listErr   error
}

func (s *fakeStore) List(ctx context.Context) ([]store.Artifact, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.artifacts, nil
}
func (s *fakeStore) Fetch(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error)  { return true, nil }

func TestRunSucceedsWithEmptyStore(t *testing.T) {
	st := &fakeStore{}
	reg := registry.New()
	p := poller.New(st, reg, nil, time.Hour)

	require.NoError(t, Run(context.Background(), p))
}

func TestRunWrapsStoreFailureAsFatal(t *testing.T) {
	st := &fakeStore{listErr: errors.New("connection refused")}
	reg := registry.New()
	p := poller.New(st, reg, nil, time.Hour)

	err := Run(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFatal)
}
