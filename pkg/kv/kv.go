// Package kv provides the key-value abstraction shared by the session
// stores and the dev backend stub (nonces, refresh tokens). Backends are
// redis-compatible servers or an in-process map.
package kv

import (
	"context"
	"time"
)

// Store defines a minimal key-value interface. Keys are strings, values are
// byte slices. A TTL of 0 means the key does not expire.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically reads and removes a key. Used for single-use
	// values such as login nonces. Returns ErrNotFound if absent.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// SetNX sets a value only if the key doesn't exist and reports whether
	// it was set.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	Close() error
}

// Prefixed namespaces every key of an underlying store.
type Prefixed struct {
	Store
	Prefix string
}

// WithPrefix returns a Store that prepends prefix to every key.
func WithPrefix(s Store, prefix string) *Prefixed {
	return &Prefixed{Store: s, Prefix: prefix}
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.Store.Set(ctx, p.Prefix+key, value, ttl)
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Get(ctx, p.Prefix+key)
}

func (p *Prefixed) GetDel(ctx context.Context, key string) ([]byte, error) {
	return p.Store.GetDel(ctx, p.Prefix+key)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.Prefix+key)
}

func (p *Prefixed) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.Store.SetNX(ctx, p.Prefix+key, value, ttl)
}

var _ Store = (*Prefixed)(nil)
