package store

import (
	"context"

	"github.com/xhad/newsagent/internal/models"
)

// Entry is one vector of the index with the record it was built from.
type Entry struct {
	Record models.MemoryRecord
	Vector []float32
}

// Snapshot is the full durable state of a MemoryStore.
type Snapshot struct {
	ProcessedIDs []string
	Entries      []Entry
}

// Persister moves snapshots to and from durable storage. Save always receives
// the full state; implementations may skip parts that have not changed since
// the last Load or Save. Entries are append-only, so their count identifies
// what has already been written.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// NeighborSearcher is implemented by persisters that can run the
// nearest-neighbour query themselves. Results must carry cosine similarity,
// nearest first.
type NeighborSearcher interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]models.MemoryRecord, error)
}
