// Package registry implements the Model Registry (spec §4.F): a
// sharded, lock-free-for-readers map from model name to the currently
// loaded predictor. Writers replace an entire shard's map atomically
// (copy-on-write) so Get never blocks behind a concurrent load,
// mirroring the sharded-map technique in the teacher's
// internal/cache/multilayer.go.
package registry

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
)

// shardCount is fixed at construction-time size, chosen as a
// compromise between per-shard mutex contention and map-copy cost on
// write (spec §5 "sharded... to bound copy-on-write cost").
const shardCount = 32

// Key is a model name. Spec §3 requires ModelName to be "unique within
// the registry" regardless of framework, so the registry is keyed by
// name alone; which framework backs a given name lives on Entry. Two
// artifacts that parse to the same model name under different
// frameworks are not two registry slots — spec §4.G resolves that
// collision during reconciliation (first one list() returns wins, the
// other is skipped with a warning) before either ever reaches Put.
type Key string

func (k Key) shardIndex() uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k))
	return h.Sum32() % shardCount
}

// Entry is the registry's record for one loaded model (spec §3
// RegistryEntry): the framework it was resolved to, the artifact
// version it was built from, and the shared-ownership Ref to its
// native predictor.
type Entry struct {
	Key       Key
	Framework predictor.Framework
	Version   string // store.Artifact.ETagOrMTime the entry was loaded from
	Ref       *predictor.Ref
}

type shard struct {
	mu      sync.Mutex // serializes writers only; readers never take it
	entries atomicMap
}

// atomicMap is a copy-on-write map guarded by an atomic pointer swap,
// so a reader sees either the whole old map or the whole new one and
// never blocks on a writer (spec §5 "get... wait-free").
type atomicMap struct {
	ptr atomic.Pointer[map[Key]*Entry]
}

func (a *atomicMap) load() map[Key]*Entry {
	m := a.ptr.Load()
	if m == nil {
		return nil
	}
	return *m
}

func (a *atomicMap) store(m map[Key]*Entry) {
	a.ptr.Store(&m)
}

// Registry is the process-wide table of loaded models.
type Registry struct {
	shards [shardCount]*shard
	group  singleflight.Group // serializes concurrent loads of the same key
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{}
		r.shards[i].entries.store(map[Key]*Entry{})
	}
	return r
}

func (r *Registry) shardFor(k Key) *shard {
	return r.shards[k.shardIndex()]
}

// Get returns the currently loaded entry for k, if any. It acquires a
// fresh Ref on the caller's behalf; the caller must Release it.
func (r *Registry) Get(k Key) (*Entry, bool) {
	m := r.shardFor(k).entries.load()
	e, ok := m[k]
	if !ok {
		return nil, false
	}
	return &Entry{Key: e.Key, Framework: e.Framework, Version: e.Version, Ref: e.Ref.Acquire()}, true
}

// Lookup returns the currently loaded entry's metadata for k, without
// acquiring a Ref — for callers that only need Framework/Version, not
// a servable handle (e.g. resolving which artifact to rebuild on
// update).
func (r *Registry) Lookup(k Key) (Entry, bool) {
	m := r.shardFor(k).entries.load()
	e, ok := m[k]
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: e.Key, Framework: e.Framework, Version: e.Version}, true
}

// List returns a snapshot of every entry currently registered, sorted
// by key for deterministic output (spec §6 GET /api/models).
func (r *Registry) List() []Entry {
	var out []Entry
	for _, s := range r.shards {
		m := s.entries.load()
		for _, e := range m {
			out = append(out, Entry{Key: e.Key, Framework: e.Framework, Version: e.Version})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Put installs a freshly built entry, replacing any prior entry under
// the same key. The superseded entry's Ref (if any) is released after
// the swap so in-flight predictions against it keep running to
// completion (spec §5 "update... predictions already in flight against
// the old predictor run to completion").
func (r *Registry) Put(e *Entry) {
	s := r.shardFor(e.Key)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.entries.load()
	next := make(map[Key]*Entry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	prev := next[e.Key]
	next[e.Key] = e
	s.entries.store(next)

	if prev != nil {
		prev.Ref.Release()
	}
}

// PutIfAbsent installs e only if no entry is currently registered under
// e.Key. It reports whether e actually won the slot, and returns the
// entry now on record under that key (e itself if inserted, otherwise
// whoever got there first). The check and the insert happen under the
// same shard lock, so — unlike a separate Exists-then-Put pair — two
// concurrent first-time adds of the same key can never both believe
// they won (spec §8.6 "concurrent add(name) calls... result in exactly
// one success and the rest AlreadyPresent"). Callers that lose must not
// touch e.Ref themselves if the winning entry turns out to be the very
// same *Entry (singleflight may have handed both racers the identical
// build result) — only Release when the returned entry is a different
// object than the one they tried to insert.
func (r *Registry) PutIfAbsent(e *Entry) (bool, *Entry) {
	s := r.shardFor(e.Key)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.entries.load()
	if existing, ok := old[e.Key]; ok {
		return false, existing
	}

	next := make(map[Key]*Entry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[e.Key] = e
	s.entries.store(next)
	return true, e
}

// Delete removes the entry under k, if present, and releases its Ref.
// Reports whether an entry was actually removed.
func (r *Registry) Delete(k Key) bool {
	s := r.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.entries.load()
	prev, ok := old[k]
	if !ok {
		return false
	}
	next := make(map[Key]*Entry, len(old))
	for kk, v := range old {
		if kk != k {
			next[kk] = v
		}
	}
	s.entries.store(next)
	prev.Ref.Release()
	return true
}

// LoadOnce runs build exactly once per key even under concurrent
// callers racing to load the same model (spec §5 "concurrent loads of
// the same key are serialized"), via golang.org/x/sync/singleflight.
// The registry is NOT mutated here; the caller decides whether to Put
// or PutIfAbsent the result (the poller reconciles, AddModel installs
// only if it wins the slot).
func (r *Registry) LoadOnce(ctx context.Context, k Key, build func(context.Context) (*Entry, error)) (*Entry, error) {
	v, err, _ := r.group.Do(string(k), func() (interface{}, error) {
		return build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Exists reports whether k already has a loaded entry, used by
// AddModel to reject duplicates per spec §7 ErrAlreadyPresent.
func (r *Registry) Exists(k Key) bool {
	_, ok := r.shardFor(k).entries.load()[k]
	return ok
}

// MustVersion returns the version string of the currently loaded
// entry for k, or "" if absent — used by the poller to decide whether
// a store artifact actually changed.
func (r *Registry) MustVersion(k Key) string {
	e, ok := r.shardFor(k).entries.load()[k]
	if !ok {
		return ""
	}
	return e.Version
}

// ErrUnknownKey is an alias of apperr.ErrNotFound, the error an update
// of a name with no entry returns. Delete is idempotent and does not
// return it.
var ErrUnknownKey = apperr.ErrNotFound
