package session

import (
	"context"
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "paydesk"

// KeyringStore keeps each field as a separate OS keyring secret, keyed by
// the normalized backend base URL so sessions against different backends
// never collide.
type KeyringStore struct {
	service string
	scope   string
}

// NewKeyringStore returns a store scoped to baseURL.
func NewKeyringStore(baseURL string) *KeyringStore {
	return &KeyringStore{service: keyringService, scope: NormalizeKey(baseURL)}
}

// NormalizeKey converts a baseURL into a stable key name. It trims
// whitespace and trailing slashes and lowercases, so https://Example.com/
// and https://example.com share a session.
func NormalizeKey(baseURL string) string {
	s := strings.TrimSpace(baseURL)
	s = strings.TrimRight(s, "/")
	return strings.ToLower(s)
}

func (k *KeyringStore) user(f Field) string {
	return k.scope + "#" + string(f)
}

func (k *KeyringStore) Get(_ context.Context, f Field) (string, error) {
	v, err := keyring.Get(k.service, k.user(f))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (k *KeyringStore) Set(_ context.Context, f Field, value string) error {
	return keyring.Set(k.service, k.user(f), value)
}

func (k *KeyringStore) Delete(_ context.Context, f Field) error {
	err := keyring.Delete(k.service, k.user(f))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

var _ Store = (*KeyringStore)(nil)
