// Package lightgbm adapts a LightGBM model file to the
// predictor.Predictor capability using dmitryikh/leaves, a pure-Go
// LightGBM/XGBoost scoring library — no cgo needed (spec §4.C LightGBM
// adapter, the one framework with a pack-provided native-Go option).
package lightgbm

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitryikh/leaves"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/tensor"
)

// Adapter wraps a parsed LightGBM model.
type Adapter struct {
	model *leaves.Ensemble
}

// Load parses the LightGBM text model file at path (conventionally
// model.txt inside the unpacked artifact directory).
func Load(path string) (*Adapter, error) {
	model, err := leaves.LGEnsembleFromFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: parse lightgbm model %q: %v", apperr.ErrLoadError, path, err)
	}
	return &Adapter{model: &model}, nil
}

func (a *Adapter) Framework() predictor.Framework { return predictor.LightGBM }

// Predict builds a dense [batch, features] row-major matrix from every
// input column (string columns are parsed as numbers), in sorted
// column order, and scores it in one bulk call
// (leaves.Ensemble.PredictDense is itself bulk and thread-safe for
// concurrent reads).
func (a *Adapter) Predict(ctx context.Context, input *tensor.Input) (*predictor.Output, error) {
	names := append(input.NumericNames(), input.StringNames()...)
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: input has no feature columns", apperr.ErrBadInput)
	}
	batch := input.BatchSize
	if batch == 0 {
		return nil, fmt.Errorf("%w: empty batch", apperr.ErrBadInput)
	}

	nFeatures := len(names)
	flat := make([]float64, 0, batch*nFeatures)
	for row := 0; row < batch; row++ {
		for _, name := range names {
			f, err := input.Columns[name].FloatAt(row)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			flat = append(flat, f)
		}
	}

	nOutputs := a.model.NOutputGroups()
	predictions := make([]float64, batch*nOutputs)
	if err := a.model.PredictDense(flat, batch, nFeatures, predictions, 0, 1); err != nil {
		return nil, fmt.Errorf("%w: predict dense: %v", apperr.ErrInferenceFailure, err)
	}

	rows := make([][]float64, batch)
	for i := 0; i < batch; i++ {
		start := i * nOutputs
		rows[i] = append([]float64(nil), predictions[start:start+nOutputs]...)
	}
	return &predictor.Output{Rows: rows}, nil
}

func (a *Adapter) Close() error {
	return nil
}
