package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/tensor"
)

type fakePredictor struct {
	fw     predictor.Framework
	closed bool
	mu     sync.Mutex
}

func (f *fakePredictor) Predict(ctx context.Context, in *tensor.Input) (*predictor.Output, error) {
	return &predictor.Output{Rows: [][]float64{{1}}}, nil
}

func (f *fakePredictor) Framework() predictor.Framework { return f.fw }

func (f *fakePredictor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newEntry(k Key, fw predictor.Framework, version string) (*Entry, *fakePredictor) {
	fp := &fakePredictor{fw: fw}
	return &Entry{Key: k, Framework: fw, Version: version, Ref: predictor.NewRef(fp)}, fp
}

func TestPutThenGetReturnsAcquiredRef(t *testing.T) {
	r := New()
	k := Key("penguins")
	e, _ := newEntry(k, predictor.TensorFlow, "v1")
	r.Put(e)

	got, ok := r.Get(k)
	require.True(t, ok)
	assert.Equal(t, "v1", got.Version)
	got.Ref.Release()
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Get(Key("missing"))
	assert.False(t, ok)
}

func TestPutReplacingEntryClosesOldPredictorOnlyAfterRefsDrain(t *testing.T) {
	r := New()
	k := Key("titanic")
	e1, fp1 := newEntry(k, predictor.CatBoost, "v1")
	r.Put(e1)

	inFlight, ok := r.Get(k)
	require.True(t, ok)

	e2, _ := newEntry(k, predictor.CatBoost, "v2")
	r.Put(e2)

	assert.False(t, fp1.closed, "old predictor must stay open while a request holds it")

	inFlight.Ref.Release()
	assert.True(t, fp1.closed, "old predictor closes once the last holder releases it")

	got, ok := r.Get(k)
	require.True(t, ok)
	assert.Equal(t, "v2", got.Version)
	got.Ref.Release()
}

func TestDeleteRemovesEntryAndReleasesRef(t *testing.T) {
	r := New()
	k := Key("iris")
	e, fp := newEntry(k, predictor.LightGBM, "v1")
	r.Put(e)

	removed := r.Delete(k)
	assert.True(t, removed)
	assert.True(t, fp.closed)

	_, ok := r.Get(k)
	assert.False(t, ok)
}

func TestDeleteUnknownKeyReturnsFalse(t *testing.T) {
	r := New()
	assert.False(t, r.Delete(Key("nope")))
}

func TestListIsSortedAndDoesNotAcquireRefs(t *testing.T) {
	r := New()
	kA, _ := newEntry(Key("b"), predictor.TensorFlow, "v1")
	kB, _ := newEntry(Key("a"), predictor.TensorFlow, "v1")
	r.Put(kA)
	r.Put(kB)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, Key("a"), list[0].Key)
	assert.Equal(t, Key("b"), list[1].Key)
	assert.Nil(t, list[0].Ref)
	assert.Nil(t, list[1].Ref)
}

func TestExistsReflectsCurrentState(t *testing.T) {
	r := New()
	k := Key("m")
	assert.False(t, r.Exists(k))

	e, _ := newEntry(k, predictor.Torch, "v1")
	r.Put(e)
	assert.True(t, r.Exists(k))
}

func TestLoadOnceRunsBuildExactlyOnceForConcurrentCallers(t *testing.T) {
	r := New()
	k := Key("concurrent")

	var calls int32
	var mu sync.Mutex
	build := func(ctx context.Context) (*Entry, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		e, _ := newEntry(k, predictor.TensorFlow, "v1")
		return e, nil
	}

	var wg sync.WaitGroup
	results := make([]*Entry, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.LoadOnce(context.Background(), k, build)
			require.NoError(t, err)
			results[i] = e
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), calls)
	for _, e := range results {
		assert.Same(t, results[0], e)
	}
}

func TestMustVersionReturnsEmptyForUnknownKey(t *testing.T) {
	r := New()
	assert.Equal(t, "", r.MustVersion(Key("x")))
}

func TestPutIfAbsentInsertsOnlyWhenEmpty(t *testing.T) {
	r := New()
	k := Key("first")
	e1, _ := newEntry(k, predictor.TensorFlow, "v1")

	inserted, current := r.PutIfAbsent(e1)
	assert.True(t, inserted)
	assert.Same(t, e1, current)

	e2, fp2 := newEntry(k, predictor.TensorFlow, "v2")
	inserted, current = r.PutIfAbsent(e2)
	assert.False(t, inserted)
	assert.Same(t, e1, current)
	assert.False(t, fp2.closed, "PutIfAbsent must never close the loser's predictor itself")

	got, ok := r.Get(k)
	require.True(t, ok)
	assert.Equal(t, "v1", got.Version)
	got.Ref.Release()
}

func TestPutIfAbsentConcurrentFirstAddsExactlyOneWinner(t *testing.T) {
	r := New()
	k := Key("race")

	// Mirrors AddModel: every caller resolves the same *Entry through
	// LoadOnce's singleflight dedup, then races to PutIfAbsent it.
	e, _ := newEntry(k, predictor.TensorFlow, "v1")

	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, current := r.PutIfAbsent(e)
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			assert.Same(t, e, current, "singleflight hands every racer the same *Entry")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
