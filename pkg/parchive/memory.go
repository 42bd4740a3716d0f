package parchive

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data []byte
	meta Object
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: map[string]memObject{}, now: time.Now}
}

func (m *MemoryStore) EnsureBucket(context.Context) error { return nil }

func (m *MemoryStore) PutJSON(_ context.Context, key string, data []byte, metadata map[string]string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj := Object{
		Key:          key,
		Bucket:       m.bucket,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%x", len(m.objects)+1),
		ContentType:  contentJSON,
		LastModified: m.now(),
		Metadata:     normalizeMetadata(metadata),
	}
	m.objects[key] = memObject{data: append([]byte(nil), data...), meta: obj}
	return m.copyOf(obj), nil
}

func (m *MemoryStore) copyOf(obj Object) *Object {
	obj.Metadata = maps.Clone(obj.Metadata)
	return &obj
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Stat(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return m.copyOf(obj.meta), nil
}

func (m *MemoryStore) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	_, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", m.bucket, key, int64(expiry.Seconds())), nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Object
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, m.copyOf(obj.meta))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
