// Package poller implements periodic reconciliation between an
// artifact store and the Model Registry (spec §4.G): on each tick it
// lists the store, diffs it against the registry, and loads/evicts
// entries to match.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/artifact"
	"github.com/aiserve/modelserver/internal/logging"
	"github.com/aiserve/modelserver/internal/metrics"
	"github.com/aiserve/modelserver/internal/predictor"
	"github.com/aiserve/modelserver/internal/registry"
	"github.com/aiserve/modelserver/internal/store"
)

// Builder constructs a registry.Entry for a freshly discovered or
// changed artifact — wired in by the caller to the unpack+adapter
// pipeline so this package stays store/adapter agnostic.
type Builder func(ctx context.Context, art store.Artifact) (*registry.Entry, error)

// Poller periodically reconciles Store against Registry. A tick that
// is still running when the next one fires is skipped, not queued
// (spec §4.G "tick discipline" — reconciliation cycles never overlap).
type Poller struct {
	Store    store.Store
	Registry *registry.Registry
	Build    Builder
	Interval time.Duration

	running chan struct{} // buffered 1; acts as a non-blocking mutex
}

// New returns a Poller ready to Run.
func New(st store.Store, reg *registry.Registry, build Builder, interval time.Duration) *Poller {
	p := &Poller{
		Store:    st,
		Registry: reg,
		Build:    build,
		Interval: interval,
		running:  make(chan struct{}, 1),
	}
	p.running <- struct{}{}
	return p
}

// Run blocks, ticking every Interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	select {
	case <-p.running:
	default:
		logging.Warn("poll tick skipped: previous cycle still running", nil)
		return
	}
	defer func() { p.running <- struct{}{} }()

	start := time.Now()
	if err := p.Reconcile(ctx); err != nil {
		metrics.PollCycles.WithLabelValues("error").Inc()
		logging.Error("poll cycle failed", map[string]interface{}{"error": err})
	} else {
		metrics.PollCycles.WithLabelValues("ok").Inc()
	}
	metrics.PollDuration.Observe(time.Since(start).Seconds())
}

// Reconcile runs one full cycle: list the store, load anything new or
// changed, and evict registry entries whose artifact disappeared. Spec
// §4.G is a firm rule, not a choice: if two artifacts in this cycle
// parse to the same model name under different frameworks, the one
// list() returned first wins and the rest are skipped with a warning
// — never loaded, regardless of what's already in the registry.
func (p *Poller) Reconcile(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, store.DefaultCallTimeout)
	defer cancel()

	artifacts, err := p.Store.List(callCtx)
	if err != nil {
		return fmt.Errorf("%w: list store: %v", apperr.ErrLoadError, err)
	}

	seen := make(map[registry.Key]bool, len(artifacts))
	claimed := make(map[registry.Key]predictor.Framework, len(artifacts))
	for _, art := range artifacts {
		name, err := artifact.Parse(art.Key)
		if err != nil {
			logging.Warn("skipping artifact with unrecognized name", map[string]interface{}{
				"key": art.Key, "error": err,
			})
			continue
		}
		key := registry.Key(name.Model)

		if fw, ok := claimed[key]; ok && fw != name.Framework {
			logging.Warn("skipping duplicate model name from a different framework", map[string]interface{}{
				"key": art.Key, "model": name.Model, "framework": name.Framework, "kept_framework": fw,
			})
			continue
		}
		claimed[key] = name.Framework
		seen[key] = true

		if p.Registry.MustVersion(key) == art.ETagOrMTime {
			continue // unchanged since last reconcile
		}

		p.load(ctx, key, name.Framework, art)
	}

	p.evictMissing(seen)
	p.refreshLoadedGauge()
	return nil
}

// refreshLoadedGauge recomputes modelserver_models_loaded from the
// registry's own state rather than incrementally, so reloads of an
// already-present key never double count.
func (p *Poller) refreshLoadedGauge() {
	counts := map[string]float64{}
	for _, e := range p.Registry.List() {
		counts[string(e.Framework)]++
	}
	for _, fw := range []string{"tensorflow", "torch", "catboost", "lightgbm"} {
		metrics.ModelsLoaded.WithLabelValues(fw).Set(counts[fw])
	}
}

func (p *Poller) load(ctx context.Context, key registry.Key, fw predictor.Framework, art store.Artifact) {
	entry, err := p.Registry.LoadOnce(ctx, key, func(ctx context.Context) (*registry.Entry, error) {
		return p.Build(ctx, art)
	})
	if err != nil {
		metrics.RegistryLoadsTotal.WithLabelValues(string(fw), "error").Inc()
		logging.Error("model load failed", map[string]interface{}{
			"framework": fw, "model": string(key), "error": err,
		})
		return
	}
	metrics.RegistryLoadsTotal.WithLabelValues(string(fw), "ok").Inc()
	p.Registry.Put(entry)
}

func (p *Poller) evictMissing(seen map[registry.Key]bool) {
	for _, e := range p.Registry.List() {
		if !seen[e.Key] {
			p.Registry.Delete(e.Key)
			logging.Info("evicted model no longer present in store", map[string]interface{}{
				"framework": e.Framework, "model": string(e.Key),
			})
		}
	}
}
