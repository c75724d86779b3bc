// Package dispatcher implements the Inference Dispatcher (spec §4.H):
// the sole point where request-handling goroutines (HTTP, gRPC) cross
// into a bounded pool of workers that actually call into native
// framework code. No Predict call ever runs directly on an async
// runtime goroutine (spec §5 "async/CPU-pool boundary").
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/metrics"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/tensor"
)

// job is one queued predict request.
type job struct {
	ctx    context.Context
	ref    *predictor.Ref
	input  *tensor.Input
	result chan<- result
}

type result struct {
	out *predictor.Output
	err error
}

// Dispatcher owns a fixed pool of goroutines that drain jobs off a
// buffered channel. The buffer size doubles as the queue-depth metric
// source and as backpressure: once it's full, submitting callers wait
// (bounded by their own request context) rather than spawning an
// unbounded number of goroutines into native code.
type Dispatcher struct {
	jobs chan job
	done chan struct{}
}

// New starts workers goroutines and returns a running Dispatcher.
// Call Stop to shut it down.
func New(workers, queueDepth int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < workers {
		queueDepth = workers
	}
	d := &Dispatcher{
		jobs: make(chan job, queueDepth),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	for {
		select {
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.run(j)
		case <-d.done:
			return
		}
	}
}

func (d *Dispatcher) run(j job) {
	defer j.ref.Release()

	if err := j.ctx.Err(); err != nil {
		j.result <- result{err: fmt.Errorf("%w: %v", apperr.ErrDeadline, err)}
		return
	}

	start := time.Now()
	out, err := j.ref.Predict(j.ctx, j.input)
	metrics.InferenceDuration.WithLabelValues(string(j.ref.Framework())).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceErrors.WithLabelValues(string(j.ref.Framework()), errKind(err)).Inc()
	}
	j.result <- result{out: out, err: err}
}

func errKind(err error) string {
	switch {
	case apperr.Is(err, apperr.ErrBadInput):
		return "bad_input"
	case apperr.Is(err, apperr.ErrDeadline):
		return "deadline"
	default:
		return "inference_failure"
	}
}

// Predict submits the work to the pool and blocks until either a
// worker produces a result or ctx is cancelled first. entry.Ref is
// expected to already be an acquired, caller-owned Ref (spec §5
// "predictions acquire their own Ref", e.g. from registry.Get);
// Predict takes ownership of it and releases it before returning.
//
// The queued job gets a second, independent Ref, acquired here and
// released by the worker in run() once the native call actually
// finishes. Predict's own early-return paths (ctx cancelled before
// submission, or before the worker answers) must not tear down the
// predictor out from under a worker that is still mid-call — that is
// exactly what sharing a single Ref between Predict's defer and the
// job would do (spec §5 "an async-side timeout... does not cancel the
// in-flight native call").
func (d *Dispatcher) Predict(ctx context.Context, entry *registry.Entry, input *tensor.Input) (*predictor.Output, error) {
	defer entry.Ref.Release()

	jobRef := entry.Ref.Acquire()
	resultCh := make(chan result, 1)
	j := job{ctx: ctx, ref: jobRef, input: input, result: resultCh}

	metrics.WorkerPoolQueueDepth.Set(float64(len(d.jobs)))

	select {
	case d.jobs <- j:
	case <-ctx.Done():
		jobRef.Release() // no worker will ever pick this job up to release it
		return nil, fmt.Errorf("%w: %v", apperr.ErrDeadline, ctx.Err())
	}

	select {
	case r := <-resultCh:
		return r.out, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apperr.ErrDeadline, ctx.Err())
	}
}

// Stop signals every worker to exit once its current job finishes.
// In-flight jobs are allowed to complete; queued jobs that no worker
// has picked up yet may be abandoned.
func (d *Dispatcher) Stop() {
	close(d.done)
}
