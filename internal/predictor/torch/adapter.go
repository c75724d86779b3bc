// Package torch adapts a TorchScript module to the predictor.Predictor
// capability using sugarme/gotch, a cgo binding over libtorch (spec
// §4.C Torch adapter — covers both "pytorch" and "torch" artifact
// prefixes, spec §9 Open Question 2).
package torch

import (
	"context"
	"fmt"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/ts"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/tensor"
)

// Adapter wraps a loaded TorchScript module pinned to one device.
type Adapter struct {
	module *ts.CModule
	device gotch.Device
}

// Load reads the TorchScript file at path (conventionally
// model.pt inside the unpacked artifact directory).
func Load(path string) (*Adapter, error) {
	device := gotch.CPU
	module, err := ts.ModuleLoadOnDevice(path, device)
	if err != nil {
		return nil, fmt.Errorf("%w: load torchscript module %q: %v", apperr.ErrLoadError, path, err)
	}
	return &Adapter{module: module, device: device}, nil
}

func (a *Adapter) Framework() predictor.Framework { return predictor.Torch }

// Predict stacks every numeric column into a single [batch, features]
// float32 tensor, in the input's sorted column order, and runs the
// module's forward method.
func (a *Adapter) Predict(ctx context.Context, input *tensor.Input) (*predictor.Output, error) {
	names := input.NumericNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: input has no numeric columns", apperr.ErrBadInput)
	}
	batch := input.BatchSize
	if batch == 0 {
		return nil, fmt.Errorf("%w: empty batch", apperr.ErrBadInput)
	}

	flat := make([]float32, 0, batch*len(names))
	for row := 0; row < batch; row++ {
		for _, name := range names {
			f, err := input.Columns[name].FloatAt(row)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			flat = append(flat, float32(f))
		}
	}

	in, err := ts.NewTensorFromData(flat, []int64{int64(batch), int64(len(names))})
	if err != nil {
		return nil, fmt.Errorf("%w: build input tensor: %v", apperr.ErrBadInput, err)
	}
	defer in.MustDrop()

	out, err := a.module.ForwardTs([]ts.Tensor{*in})
	if err != nil {
		return nil, fmt.Errorf("%w: forward: %v", apperr.ErrInferenceFailure, err)
	}
	defer out.MustDrop()

	values, err := out.Float64Values()
	if err != nil {
		return nil, fmt.Errorf("%w: read output values: %v", apperr.ErrInferenceFailure, err)
	}
	outCols := len(values) / batch
	if outCols == 0 {
		outCols = 1
	}

	rows := make([][]float64, batch)
	for i := 0; i < batch; i++ {
		start := i * outCols
		end := start + outCols
		if end > len(values) {
			end = len(values)
		}
		rows[i] = append([]float64(nil), values[start:end]...)
	}
	return &predictor.Output{Rows: rows}, nil
}

func (a *Adapter) Close() error {
	a.module.Drop()
	return nil
}
