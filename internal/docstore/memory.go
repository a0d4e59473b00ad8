package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"logistria/internal/etl"
)

// MemoryStore is an in-process Store. Commits are atomic under one lock,
// so a batch is either fully visible or not at all.
type MemoryStore struct {
	// MaxBatchWrites caps CommitBatch; 0 disables the cap.
	MaxBatchWrites int

	mu          sync.Mutex
	collections map[string]map[string]*memEntry
	seq         int64
	subs        map[string][]chan Snapshot
	failCommit  error
}

type memEntry struct {
	fields map[string]any
	seq    int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memEntry),
		subs:        make(map[string][]chan Snapshot),
	}
}

var _ Store = (*MemoryStore)(nil)

// FailCommits makes every following CommitBatch fail with err.
// Pass nil to restore normal behavior.
func (m *MemoryStore) FailCommits(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommit = err
}

func (m *MemoryStore) CommitBatch(ctx context.Context, collection string, docs []etl.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCommit != nil {
		return 0, m.failCommit
	}
	if m.MaxBatchWrites > 0 && len(docs) > m.MaxBatchWrites {
		return 0, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(docs), m.MaxBatchWrites)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	coll := m.collectionLocked(collection)
	for _, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		m.putLocked(coll, id, d.Fields)
	}
	m.notifyLocked(collection)
	return len(docs), nil
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.putLocked(m.collectionLocked(collection), id, fields)
	m.notifyLocked(collection)
	return id, nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyFields(e.fields), nil
}

func (m *MemoryStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(m.collectionLocked(collection), id, fields)
	m.notifyLocked(collection)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(collection), nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, <-chan error) {
	out := make(chan Snapshot, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	out <- Snapshot{Collection: collection, Docs: m.listLocked(collection), At: time.Now()}
	m.subs[collection] = append(m.subs[collection], out)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		subs := m.subs[collection]
		for i, ch := range subs {
			if ch == out {
				m.subs[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(out)
		close(errCh)
		m.mu.Unlock()
	}()

	return out, errCh
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

// Count returns the number of documents in collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func (m *MemoryStore) collectionLocked(name string) map[string]*memEntry {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string]*memEntry)
		m.collections[name] = coll
	}
	return coll
}

// putLocked replaces the fields under id but keeps its original position.
func (m *MemoryStore) putLocked(coll map[string]*memEntry, id string, fields map[string]any) {
	if e, ok := coll[id]; ok {
		e.fields = copyFields(fields)
		return
	}
	m.seq++
	coll[id] = &memEntry{fields: copyFields(fields), seq: m.seq}
}

func (m *MemoryStore) listLocked(collection string) []Doc {
	coll := m.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return coll[ids[i]].seq < coll[ids[j]].seq })

	docs := make([]Doc, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, Doc{ID: id, Fields: copyFields(coll[id].fields)})
	}
	return docs
}

// notifyLocked pushes a fresh snapshot to every subscriber. Slow readers
// only ever see the latest snapshot.
func (m *MemoryStore) notifyLocked(collection string) {
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap := Snapshot{Collection: collection, Docs: m.listLocked(collection), At: time.Now()}
	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
