package service

import (
	"sync"
	"time"

	"github.com/aiserve/modelserver/internal/registry"
)

// loadTimes tracks the wall-clock time each registry key was last
// (re)loaded through Service.AddModel or Service.UpdateModel, for
// ModelInfo.LastUpdated — the registry itself only tracks artifact
// version, not load time, so this lives at the service layer. Loads
// done by the poller or the startup loader are not recorded: such
// entries report an empty LastUpdated, or the time of an earlier
// AddModel/UpdateModel of the same name.
type loadTimes struct {
	mu sync.Mutex
	m  map[registry.Key]time.Time
}

func newLoadTimes() loadTimes {
	return loadTimes{m: make(map[registry.Key]time.Time)}
}

func (l *loadTimes) set(k registry.Key, t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[k] = t
}

func (l *loadTimes) delete(k registry.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, k)
}

func (l *loadTimes) get(k registry.Key) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.m[k]
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
