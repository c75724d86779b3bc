// Package predictor defines the uniform Predictor capability (spec
// §4.B) implemented by each framework adapter, plus the reference
// counting that keeps a native handle alive for every in-flight
// prediction (spec §4.F, §9 "shared ownership of predictors").
package predictor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/tensor"
)

// Framework is the closed enumeration of supported native runtimes
// (spec §3).
type Framework string

const (
	TensorFlow Framework = "tensorflow"
	Torch      Framework = "torch"
	CatBoost   Framework = "catboost"
	LightGBM   Framework = "lightgbm"
)

// ParseFramework maps an artifact-name prefix to a Framework. "pytorch"
// and "torch" both route to Torch (spec §3, §9 Open Question 3).
func ParseFramework(prefix string) (Framework, error) {
	switch prefix {
	case "tensorflow":
		return TensorFlow, nil
	case "pytorch", "torch":
		return Torch, nil
	case "catboost":
		return CatBoost, nil
	case "lightgbm":
		return LightGBM, nil
	default:
		return "", fmt.Errorf("unknown framework prefix %q: %w", prefix, apperr.ErrBadInput)
	}
}

// Output is the 2-D prediction result: outer dimension is batch size,
// inner dimension is per-row scores (spec §3 ModelOutput).
type Output struct {
	Rows [][]float64
}

// Predictor is the capability every framework adapter implements.
// Predict must not panic (native errors convert to apperr.ErrInferenceFailure
// or apperr.ErrBadInput), must be safe for concurrent callers, and must
// not retain a reference to input after it returns (spec §4.B).
type Predictor interface {
	Predict(ctx context.Context, input *tensor.Input) (*Output, error)
	Framework() Framework

	// Close releases the native handle. Called exactly once, when the
	// last Ref to this predictor is dropped.
	Close() error
}

// Ref is a shared, reference-counted handle to a Predictor. The
// registry holds one Ref per RegistryEntry; every in-flight prediction
// acquires its own Ref via Acquire so that replacing or deleting the
// entry cannot invalidate a request already in flight (spec §4.F
// "update", §5 "get... guaranteed to complete against version N").
type Ref struct {
	p        Predictor
	refCount *int32
}

// NewRef wraps a freshly constructed Predictor in a Ref with an initial
// count of one (held by the caller, typically the registry entry that
// just built it).
func NewRef(p Predictor) *Ref {
	count := int32(1)
	ref := &Ref{p: p, refCount: &count}
	runtime.SetFinalizer(ref, func(r *Ref) { r.Release() })
	return ref
}

// Acquire returns a new Ref sharing the same underlying Predictor and
// increments the reference count. Each Acquire must be matched by a
// Release.
func (r *Ref) Acquire() *Ref {
	atomic.AddInt32(r.refCount, 1)
	dup := &Ref{p: r.p, refCount: r.refCount}
	runtime.SetFinalizer(dup, func(d *Ref) { d.Release() })
	return dup
}

// Release decrements the reference count and closes the underlying
// Predictor once the last holder releases it. Every call decrements
// the shared count, so each Ref must be released exactly once; only
// the transition to zero triggers Close.
func (r *Ref) Release() {
	runtime.SetFinalizer(r, nil)
	if atomic.AddInt32(r.refCount, -1) == 0 {
		_ = r.p.Close()
	}
}

// Predict delegates to the underlying Predictor. Callers that obtained
// this Ref from the registry must call Release when done, regardless
// of whether Predict returned an error.
func (r *Ref) Predict(ctx context.Context, input *tensor.Input) (*Output, error) {
	return r.p.Predict(ctx, input)
}

// Framework returns the underlying Predictor's framework.
func (r *Ref) Framework() Framework {
	return r.p.Framework()
}
