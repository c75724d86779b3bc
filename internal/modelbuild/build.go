// Package modelbuild wires the artifact store, the unpacker and the
// four framework adapters together into the poller.Builder function
// the Model Registry actually calls on a new or changed artifact
// (spec §4.E/F boundary).
package modelbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/artifact"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/predictor/catboost"
	"github.com/aiserve/modelserver/internal/predictor/lightgbm"
	"github.com/aiserve/modelserver/internal/predictor/tensorflow"
	"github.com/aiserve/modelserver/internal/predictor/torch"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/store"
	"github.com/aiserve/modelserver/internal/unpack"
)

// Builder fetches an artifact's bytes, unpacks them into ScratchRoot
// and constructs the matching framework adapter, returning a
// ready-to-install registry.Entry.
type Builder struct {
	Store       store.Store
	ScratchRoot string
}

// New returns a Builder rooted at scratchRoot, creating it if absent.
func New(st store.Store, scratchRoot string) (*Builder, error) {
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: scratch root %q: %v", apperr.ErrFatal, scratchRoot, err)
	}
	return &Builder{Store: st, ScratchRoot: scratchRoot}, nil
}

// Build implements poller.Builder.
func (b *Builder) Build(ctx context.Context, art store.Artifact) (*registry.Entry, error) {
	name, err := artifact.Parse(art.Key)
	if err != nil {
		return nil, err
	}

	data, err := b.Store.Fetch(ctx, art.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %q: %v", apperr.ErrLoadError, art.Key, err)
	}

	dir, err := unpack.ToScratch(b.ScratchRoot, data)
	if err != nil {
		return nil, err
	}

	p, err := loadAdapter(name.Framework, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &registry.Entry{
		Key:       registry.Key(name.Model),
		Framework: name.Framework,
		Version:   art.ETagOrMTime,
		Ref:       predictor.NewRef(p),
	}, nil
}

func loadAdapter(fw predictor.Framework, dir string) (predictor.Predictor, error) {
	switch fw {
	case predictor.TensorFlow:
		return tensorflow.Load(dir, tensorflow.Options{})
	case predictor.Torch:
		return torch.Load(filepath.Join(dir, "model.pt"))
	case predictor.CatBoost:
		return catboost.Load(filepath.Join(dir, "model.cbm"))
	case predictor.LightGBM:
		return lightgbm.Load(filepath.Join(dir, "model.txt"))
	default:
		return nil, fmt.Errorf("%w: unsupported framework %q", apperr.ErrBadInput, fw)
	}
}
