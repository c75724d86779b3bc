// Package store defines the artifact store contract (spec §4.D) shared
// by the local filesystem, S3-compatible and Azure Blob drivers. Stores
// are read-only with respect to the artifacts they expose.
package store

import (
	"context"
	"time"
)

// Artifact is the abstract record a driver exposes for enumeration
// (spec §3 StoreArtifact).
type Artifact struct {
	Key         string
	ETagOrMTime string
	Size        int64
}

// Store discovers and fetches model artifacts. Implementations never
// mutate the backing store.
type Store interface {
	// List enumerates every artifact currently present.
	List(ctx context.Context) ([]Artifact, error)

	// Fetch retrieves the full contents of the named artifact.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an artifact with the given key is present,
	// without fetching its contents.
	Exists(ctx context.Context, key string) (bool, error)
}

// DefaultCallTimeout bounds a single List call issued by the poller
// (and by the service's artifact lookup) so one unreachable backend
// cannot stall reconciliation indefinitely (spec §4.G tick
// discipline). Fetch calls are not bounded by it.
const DefaultCallTimeout = 30 * time.Second
