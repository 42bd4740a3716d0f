package session

import (
	"context"
	"errors"

	"github.com/quatton/paydesk/pkg/kv"
)

// KVStore keeps the session in a kv.Store, typically redis, so several
// headless workers can share one operator login.
type KVStore struct {
	kv kv.Store
}

// NewKVStore namespaces keys as "session:<baseURL>:<field>".
func NewKVStore(store kv.Store, baseURL string) *KVStore {
	return &KVStore{kv: kv.WithPrefix(store, "session:"+NormalizeKey(baseURL)+":")}
}

func (s *KVStore) Get(ctx context.Context, f Field) (string, error) {
	v, err := s.kv.Get(ctx, string(f))
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *KVStore) Set(ctx context.Context, f Field, value string) error {
	return s.kv.Set(ctx, string(f), []byte(value), 0)
}

func (s *KVStore) Delete(ctx context.Context, f Field) error {
	return s.kv.Delete(ctx, string(f))
}

var _ Store = (*KVStore)(nil)
