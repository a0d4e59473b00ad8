package docstore

import (
	"context"
	"errors"
	"time"

	"logistria/internal/etl"
)

var (
	// ErrNotFound is returned by Get when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrBatchTooLarge is returned before any write when a batch
	// exceeds the store's per-commit limit.
	ErrBatchTooLarge = errors.New("batch exceeds the maximum number of writes per commit")
)

// Doc is a stored document.
type Doc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Snapshot is the full content of a collection at one point in time.
type Snapshot struct {
	Collection string    `json:"collection"`
	Docs       []Doc     `json:"docs"`
	At         time.Time `json:"at"`
}

// Store abstracts the hosted document database.
type Store interface {
	// CommitBatch writes all documents or none of them.
	etl.Destination

	// Insert adds a document under a fresh id and returns that id.
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Get returns the fields of one document, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, collection, id string, fields map[string]any) error

	// List returns every document of a collection.
	List(ctx context.Context, collection string) ([]Doc, error)

	// Subscribe streams a snapshot of the collection immediately and again
	// after every change. Both channels are closed when ctx is cancelled.
	// At most one error is sent on the error channel.
	Subscribe(ctx context.Context, collection string) (<-chan Snapshot, <-chan error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close(ctx context.Context) error
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
