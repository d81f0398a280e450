package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	meta Metadata
	log  CommitLogEntry
	blob []byte
}

// MemoryStore is an in-memory Store used in dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord), now: time.Now}
}

func (m *MemoryStore) Record(ctx context.Context, c Commit) error {
	blob, err := Compress(c.Content)
	if err != nil {
		return err
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[CommitLogID(c.Kind, c.EntityID, c.Version)] = &memoryRecord{
		meta: c.metadata(now),
		log:  c.logEntry(now),
		blob: blob,
	}
	return nil
}

func (m *MemoryStore) Content(ctx context.Context, kind, entityID string, version int) ([]byte, error) {
	m.mu.RLock()
	rec, ok := m.records[CommitLogID(kind, entityID, version)]
	m.mu.RUnlock()
	if !ok || rec.blob == nil {
		return nil, ErrNotFound
	}
	return Decompress(rec.blob)
}

func (m *MemoryStore) sorted(kind string) []*memoryRecord {
	out := []*memoryRecord{}
	for _, r := range m.records {
		if r.meta.EntityKind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].meta.EntityID != out[j].meta.EntityID {
			return out[i].meta.EntityID < out[j].meta.EntityID
		}
		return out[i].meta.Version < out[j].meta.Version
	})
	return out
}

func (m *MemoryStore) MetadataFor(ctx context.Context, kind string) ([]Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.sorted(kind)
	out := make([]Metadata, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.meta)
	}
	return out, nil
}

func (m *MemoryStore) CommitLogFor(ctx context.Context, kind string) ([]CommitLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.sorted(kind)
	out := make([]CommitLogEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.log)
	}
	return out, nil
}

func (m *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.blob != nil && r.meta.CreatedOn.Before(cutoff) {
			r.blob = nil
			n++
		}
	}
	return n, nil
}
