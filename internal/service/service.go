// Package service implements the transport-agnostic operations behind
// both the HTTP and gRPC external interfaces (spec §6): predict,
// list/add/update/delete models. internal/api/httpapi and
// internal/api/grpcapi are thin decoders over this package.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/artifact"
	"github.com/aiserve/modelserver/internal/dispatcher"
	"github.com/aiserve/modelserver/internal/modelbuild"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/store"
	"github.com/aiserve/modelserver/internal/tensor"
)

// ModelInfo is the metadata shape returned by ListModels (spec §3
// ModelMetadata, minus the predictor handle).
type ModelInfo struct {
	Name        string `json:"name"`
	Framework   string `json:"framework"`
	Path        string `json:"path"`
	LastUpdated string `json:"last_updated"`
}

// Service ties the registry, dispatcher and artifact builder together.
type Service struct {
	Registry *registry.Registry
	Dispatch *dispatcher.Dispatcher
	Build    *modelbuild.Builder
	Store    store.Store

	// loadedAt records when each key was most recently (re)loaded by
	// AddModel or UpdateModel, for ModelInfo.LastUpdated — the registry
	// itself only tracks artifact version, not wall-clock load time.
	// Poller and startup loads are not recorded here.
	loadedAt loadTimes
}

// New returns a Service wired to the given components.
func New(reg *registry.Registry, disp *dispatcher.Dispatcher, build *modelbuild.Builder, st store.Store) *Service {
	return &Service{Registry: reg, Dispatch: disp, Build: build, Store: st, loadedAt: newLoadTimes()}
}

// HealthCheck reports process readiness. Always succeeds once the
// Service exists — readiness gating happens before the server starts
// accepting connections (spec §4.I).
func (s *Service) HealthCheck(ctx context.Context) error {
	return nil
}

// Predict parses rawInput (a JSON object of feature→array) and runs it
// through the named model's predictor via the dispatcher.
func (s *Service) Predict(ctx context.Context, modelName, rawInput string) (*predictor.Output, error) {
	entry, ok := s.Registry.Get(registry.Key(modelName))
	if !ok {
		return nil, fmt.Errorf("model %q: %w", modelName, apperr.ErrNotFound)
	}

	input, err := tensor.Parse([]byte(rawInput))
	if err != nil {
		entry.Ref.Release()
		return nil, err
	}

	return s.Dispatch.Predict(ctx, entry, input)
}

// ListModels returns a snapshot of every loaded model (spec §6
// GET /api/models).
func (s *Service) ListModels() []ModelInfo {
	entries := s.Registry.List()
	out := make([]ModelInfo, len(entries))
	for i, e := range entries {
		out[i] = ModelInfo{
			Name:        string(e.Key),
			Framework:   string(e.Framework),
			Path:        "",
			LastUpdated: s.loadedAt.get(e.Key),
		}
	}
	return out
}

// AddModel loads a new model from artifactName ("<framework>-<name>",
// no suffix — spec §6 POST /api/models body). Fails with
// apperr.ErrAlreadyPresent if the model name is already loaded under
// any framework (spec §3 "ModelName: ... unique within the registry").
func (s *Service) AddModel(ctx context.Context, artifactName string) error {
	name, err := artifact.Parse(artifactName + ".tar.gz")
	if err != nil {
		return err
	}
	key := registry.Key(name.Model)

	if s.Registry.Exists(key) {
		return fmt.Errorf("model %q: %w", key, apperr.ErrAlreadyPresent)
	}

	art, ok, err := s.findArtifact(ctx, name.Raw)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("artifact %q: %w", name.Raw, apperr.ErrNotFound)
	}

	entry, err := s.Registry.LoadOnce(ctx, key, func(ctx context.Context) (*registry.Entry, error) {
		return s.Build.Build(ctx, art)
	})
	if err != nil {
		return err
	}

	// PutIfAbsent makes "first successful insert wins" atomic with the
	// Exists check above: two concurrent first-time adds of the same
	// name both reach here with singleflight's deduped *Entry, but only
	// one of them actually installs it (spec §8.6 "exactly one success,
	// the rest AlreadyPresent"). The loser must not release entry.Ref
	// unless it lost to someone else's build — if singleflight handed
	// both racers the identical *Entry, the winner already owns it.
	inserted, current := s.Registry.PutIfAbsent(entry)
	if !inserted {
		if current != entry {
			entry.Ref.Release()
		}
		return fmt.Errorf("model %q: %w", key, apperr.ErrAlreadyPresent)
	}
	s.loadedAt.set(key, time.Now())
	return nil
}

// UpdateModel re-fetches and rebuilds an existing model by name alone
// (spec §6 PUT /api/models body `{"model_name": "<name>"}` — the
// framework is resolved from the current registry entry).
func (s *Service) UpdateModel(ctx context.Context, modelName string) error {
	key := registry.Key(modelName)
	existing, ok := s.Registry.Lookup(key)
	if !ok {
		return fmt.Errorf("model %q: %w", modelName, apperr.ErrNotFound)
	}

	artifactName := artifact.Format(existing.Framework, modelName)
	art, ok, err := s.findArtifact(ctx, stripSuffix(artifactName))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("artifact for %q: %w", modelName, apperr.ErrNotFound)
	}

	entry, err := s.Registry.LoadOnce(ctx, key, func(ctx context.Context) (*registry.Entry, error) {
		return s.Build.Build(ctx, art)
	})
	if err != nil {
		return err
	}
	s.Registry.Put(entry)
	s.loadedAt.set(key, time.Now())
	return nil
}

// DeleteModel removes modelName from the registry. Per spec §9 Open
// Question 1, delete is idempotent: removing an already-absent model
// is not an error.
func (s *Service) DeleteModel(ctx context.Context, modelName string) error {
	key := registry.Key(modelName)
	s.Registry.Delete(key)
	s.loadedAt.delete(key)
	return nil
}

func (s *Service) findArtifact(ctx context.Context, artifactNameNoSuffix string) (store.Artifact, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, store.DefaultCallTimeout)
	defer cancel()

	artifacts, err := s.Store.List(callCtx)
	if err != nil {
		return store.Artifact{}, false, fmt.Errorf("%w: list store: %v", apperr.ErrLoadError, err)
	}
	want := artifactNameNoSuffix + ".tar.gz"
	for _, a := range artifacts {
		if a.Key == want {
			return a, true, nil
		}
	}
	return store.Artifact{}, false, nil
}

func stripSuffix(artifactName string) string {
	const suffix = ".tar.gz"
	if len(artifactName) > len(suffix) && artifactName[len(artifactName)-len(suffix):] == suffix {
		return artifactName[:len(artifactName)-len(suffix)]
	}
	return artifactName
}

// EncodePredictions renders a predictor.Output as the JSON string
// shape spec §6 requires inside the HTTP/gRPC "output" field.
func EncodePredictions(out *predictor.Output) (string, error) {
	data, err := json.Marshal(struct {
		Predictions [][]float64 `json:"predictions"`
	}{Predictions: out.Rows})
	if err != nil {
		return "", fmt.Errorf("%w: encode predictions: %v", apperr.ErrInferenceFailure, err)
	}
	return string(data), nil
}
