package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/tensor"
)

type slowPredictor struct {
	delay  time.Duration
	fw     predictor.Framework
	err    error
	mu     sync.Mutex
	closed bool
}

func (p *slowPredictor) Predict(ctx context.Context, in *tensor.Input) (*predictor.Output, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &predictor.Output{Rows: [][]float64{{42}}}, nil
}
func (p *slowPredictor) Framework() predictor.Framework { return p.fw }

func (p *slowPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *slowPredictor) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func entryWith(p predictor.Predictor) *registry.Entry {
	ref := predictor.NewRef(p)
	return &registry.Entry{Key: registry.Key("m"), Framework: p.Framework(), Ref: ref}
}

func TestPredictReturnsWorkerResult(t *testing.T) {
	d := New(2, 4)
	defer d.Stop()

	e := entryWith(&slowPredictor{fw: predictor.TensorFlow})
	out, err := d.Predict(context.Background(), e, &tensor.Input{})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{42}}, out.Rows)
}

func TestPredictPropagatesPredictorError(t *testing.T) {
	d := New(1, 2)
	defer d.Stop()

	boom := errors.New("native predict failed")
	e := entryWith(&slowPredictor{fw: predictor.Torch, err: boom})
	_, err := d.Predict(context.Background(), e, &tensor.Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPredictRespectsContextDeadline(t *testing.T) {
	d := New(1, 1)
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	e := entryWith(&slowPredictor{fw: predictor.CatBoost, delay: 200 * time.Millisecond})
	_, err := d.Predict(ctx, e, &tensor.Input{})
	require.Error(t, err)
}

// TestPredictDoesNotCloseInFlightPredictorOnCallerTimeout exercises the
// case a shared Ref would get wrong: Predict returns early on context
// timeout while the worker is still running the native call, and the
// caller releases its own Ref as soon as it returns. The predictor must
// stay open until the worker's own, separately acquired Ref is released
// after the native call finishes — not the instant Predict returns.
func TestPredictDoesNotCloseInFlightPredictorOnCallerTimeout(t *testing.T) {
	d := New(1, 1)
	defer d.Stop()

	sp := &slowPredictor{fw: predictor.Torch, delay: 100 * time.Millisecond}
	// Predict's own entry.Ref.Release() must not be the last release
	// while the worker is still mid-call; hold a second Ref here to
	// simulate the registry itself still pointing at this entry.
	ref := predictor.NewRef(sp)
	held := ref.Acquire()
	e := &registry.Entry{Key: registry.Key("m"), Framework: sp.fw, Ref: ref}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := d.Predict(ctx, e, &tensor.Input{})
	require.Error(t, err)
	assert.False(t, sp.isClosed(), "predictor must not close while the worker is still running")

	time.Sleep(150 * time.Millisecond) // let the worker finish and release its job Ref
	assert.False(t, sp.isClosed(), "the test's own held Ref keeps it open")

	held.Release()
	assert.True(t, sp.isClosed(), "closes once every acquired Ref, including the finished job's, is released")
}

func TestPredictHandlesManyConcurrentCallersWithBoundedWorkers(t *testing.T) {
	d := New(2, 8)
	defer d.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := entryWith(&slowPredictor{fw: predictor.LightGBM, delay: time.Millisecond})
			_, err := d.Predict(context.Background(), e, &tensor.Input{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
