// Package catboost adapts a CatBoost model to the predictor.Predictor
// capability via a cgo bridge onto libcatboostmodel, CatBoost's public
// C API for model application (spec §4.C CatBoost adapter). No Go
// binding for this exists anywhere in the example corpus or the wider
// ecosystem, so this package hand-writes the minimal cgo surface
// (create/load/predict/destroy) rather than shipping a vendored fake.
package catboost

/*
#cgo LDFLAGS: -lcatboostmodel
#include <stdlib.h>
#include "c_api.h"
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/tensor"
)

// Adapter wraps a loaded CatBoost model handle.
type Adapter struct {
	handle C.ModelCalcerHandle
}

// Load reads the CatBoost binary model file at path (conventionally
// model.cbm inside the unpacked artifact directory).
func Load(path string) (*Adapter, error) {
	handle := C.ModelCalcerCreate()
	if handle == nil {
		return nil, fmt.Errorf("%w: catboost model calcer allocation failed", apperr.ErrLoadError)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	if ok := C.LoadFullModelFromFile(handle, cPath); ok == 0 {
		C.ModelCalcerDelete(handle)
		return nil, fmt.Errorf("%w: load catboost model %q: %s", apperr.ErrLoadError, path, C.GoString(C.GetErrorString()))
	}

	a := &Adapter{handle: handle}
	runtime.SetFinalizer(a, func(a *Adapter) { a.Close() })
	return a, nil
}

func (a *Adapter) Framework() predictor.Framework { return predictor.CatBoost }

// Predict feeds every numeric column as a float feature and every
// string column as a categorical feature, preserving each column's
// sorted name order across the whole batch.
func (a *Adapter) Predict(ctx context.Context, input *tensor.Input) (*predictor.Output, error) {
	floatNames := input.NumericNames()
	catNames := input.StringNames()
	batch := input.BatchSize
	if batch == 0 {
		return nil, fmt.Errorf("%w: empty batch", apperr.ErrBadInput)
	}

	// One contiguous backing array per row, with a parallel array of
	// row pointers into it — the shape CalcModelPrediction expects
	// (float** / char***: one pointer per document).
	floatRows := make([][]C.float, batch)
	floatRowPtrs := make([]*C.float, batch)
	for row := 0; row < batch; row++ {
		floatRows[row] = make([]C.float, len(floatNames))
		for j, name := range floatNames {
			f, err := input.Columns[name].FloatAt(row)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", name, err)
			}
			floatRows[row][j] = C.float(f)
		}
		if len(floatNames) > 0 {
			floatRowPtrs[row] = &floatRows[row][0]
		}
	}

	var allocated []*C.char
	defer func() {
		for _, p := range allocated {
			C.free(unsafe.Pointer(p))
		}
	}()

	catRows := make([][]*C.char, batch)
	catRowPtrs := make([]**C.char, batch)
	for row := 0; row < batch; row++ {
		catRows[row] = make([]*C.char, len(catNames))
		for j, name := range catNames {
			cstr := C.CString(input.Columns[name].StringAt(row))
			allocated = append(allocated, cstr)
			catRows[row][j] = cstr
		}
		if len(catNames) > 0 {
			catRowPtrs[row] = &catRows[row][0]
		}
	}

	nFloat := C.size_t(len(floatNames))
	nCat := C.size_t(len(catNames))
	results := make([]C.double, batch)

	var floatMatrix **C.float
	if batch > 0 {
		floatMatrix = &floatRowPtrs[0]
	}
	var catMatrix ***C.char
	if batch > 0 {
		catMatrix = &catRowPtrs[0]
	}

	ok := C.CalcModelPrediction(
		a.handle,
		C.size_t(batch),
		floatMatrix, nFloat,
		catMatrix, nCat,
		&results[0], C.size_t(batch),
	)
	if ok == 0 {
		return nil, fmt.Errorf("%w: calc model prediction: %s", apperr.ErrInferenceFailure, C.GoString(C.GetErrorString()))
	}

	rows := make([][]float64, batch)
	for i := 0; i < batch; i++ {
		rows[i] = []float64{float64(results[i])}
	}
	return &predictor.Output{Rows: rows}, nil
}

func (a *Adapter) Close() error {
	runtime.SetFinalizer(a, nil)
	if a.handle != nil {
		C.ModelCalcerDelete(a.handle)
		a.handle = nil
	}
	return nil
}
