// Package tensorflow adapts a TensorFlow SavedModel directory to the
// predictor.Predictor capability, using the official TensorFlow Go
// bindings (spec §4.C TensorFlow adapter).
package tensorflow

import (
	"context"
	"fmt"
	"sort"

	tf "github.com/tensorflow/tensorflow/tensorflow/go"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/tensor"
)

// Options selects which signature and tags to load the SavedModel
// under; when empty they default to the conventional "serve" tag and
// "serving_default" signature.
type Options struct {
	Tags          []string
	SignatureName string
}

func (o Options) tags() []string {
	if len(o.Tags) == 0 {
		return []string{"serve"}
	}
	return o.Tags
}

func (o Options) signature() string {
	if o.SignatureName == "" {
		return "serving_default"
	}
	return o.SignatureName
}

// Adapter wraps a loaded SavedModel. Predict feeds every numeric
// column in the input as a named placeholder and reads back the
// signature's single declared output tensor.
type Adapter struct {
	model *tf.SavedModel
	sig   string
}

// Load opens the SavedModel rooted at dir.
func Load(dir string, opts Options) (*Adapter, error) {
	model, err := tf.LoadSavedModel(dir, opts.tags(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load saved_model at %q: %v", apperr.ErrLoadError, dir, err)
	}
	return &Adapter{model: model, sig: opts.signature()}, nil
}

func (a *Adapter) Framework() predictor.Framework { return predictor.TensorFlow }

// Predict builds one float32 tensor per numeric column (batched along
// dimension 0) and runs the model's serving signature.
func (a *Adapter) Predict(ctx context.Context, input *tensor.Input) (*predictor.Output, error) {
	sigDef, ok := a.model.Signatures[a.sig]
	if !ok {
		return nil, fmt.Errorf("%w: signature %q not found in saved_model", apperr.ErrInferenceFailure, a.sig)
	}

	names := input.NumericNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: input has no numeric columns", apperr.ErrBadInput)
	}
	sort.Strings(names)

	feeds := make(map[tf.Output]*tf.Tensor, len(names))
	for _, name := range names {
		col := input.Columns[name]
		rows := make([]float32, col.Len())
		for i := 0; i < col.Len(); i++ {
			f, err := col.FloatAt(i)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			rows[i] = float32(f)
		}
		t, err := tf.NewTensor(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: build input tensor %q: %v", apperr.ErrBadInput, name, err)
		}
		info, ok := sigDef.Inputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown input column %q for signature %q", apperr.ErrBadInput, name, a.sig)
		}
		feeds[a.model.Graph.Operation(info.Name).Output(0)] = t
	}

	var outputOp tf.Output
	var outInfo interface{}
	for _, info := range sigDef.Outputs {
		outInfo = info
		outputOp = a.model.Graph.Operation(info.Name).Output(0)
		break
	}
	if outInfo == nil {
		return nil, fmt.Errorf("%w: signature %q declares no outputs", apperr.ErrInferenceFailure, a.sig)
	}

	results, err := a.model.Session.Run(feeds, []tf.Output{outputOp}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: session run: %v", apperr.ErrInferenceFailure, err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: expected 1 output tensor, got %d", apperr.ErrInferenceFailure, len(results))
	}

	rows, err := toRows(results[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInferenceFailure, err)
	}
	return &predictor.Output{Rows: rows}, nil
}

func toRows(t *tf.Tensor) ([][]float64, error) {
	switch v := t.Value().(type) {
	case [][]float32:
		out := make([][]float64, len(v))
		for i, row := range v {
			out[i] = make([]float64, len(row))
			for j, f := range row {
				out[i][j] = float64(f)
			}
		}
		return out, nil
	case []float32:
		out := make([][]float64, len(v))
		for i, f := range v {
			out[i] = []float64{float64(f)}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported output tensor shape %T", v)
	}
}

func (a *Adapter) Close() error {
	return a.model.Session.Close()
}
