package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	disposition string
}

// MemoryStorage is an ObjectStore kept in process memory. Signed URLs use
// the memory:// scheme and are not served by anything.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

func (m *MemoryStorage) Put(ctx context.Context, obj Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = memoryObject{data: data, contentType: obj.ContentType, disposition: obj.disposition()}
	return nil
}

func (m *MemoryStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	u := url.URL{Scheme: "memory", Host: "objects", Path: "/" + key}
	q := u.Query()
	q.Set("expires", ttl.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Header returns the Content-Type and Content-Disposition stored with key.
func (m *MemoryStorage) Header(key string) (contentType, disposition string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o := m.objects[key]
	return o.contentType, o.disposition
}
