package etl

import "context"

// ── Destination ────────────────────────────────────────────
// A Destination writes one import's documents into a collection.

// Destination commits documents as a single all-or-nothing batch.
//
// Documents with an ID replace whatever is stored under that ID; when the
// same ID occurs twice in one batch the later document wins. Documents
// without an ID are inserted under a fresh store-assigned ID.
type Destination interface {
	CommitBatch(ctx context.Context, collection string, docs []Document) (int, error)
}

// DestinationFunc adapts a plain function to the Destination interface.
type DestinationFunc func(ctx context.Context, collection string, docs []Document) (int, error)

func (f DestinationFunc) CommitBatch(ctx context.Context, collection string, docs []Document) (int, error) {
	return f(ctx, collection, docs)
}
