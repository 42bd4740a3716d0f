package psdk

import (
	"context"
	"fmt"
	"io"

	"github.com/quatton/paydesk/pkg/kv"
	"github.com/quatton/paydesk/pkg/plog"
	"github.com/quatton/paydesk/pkg/session"
)

// Sdk bundles a Client with the typed services. CLI commands use it so they
// don't need to wire session store + client + options themselves.
type Sdk struct {
	Config  *Config
	Client  *Client
	Auth    *AuthService
	Payroll *PayrollService

	closer io.Closer
}

// NewSdk builds the session store selected by cfg and a Client on top of
// it. Extra options are applied after the ones derived from cfg.
func NewSdk(ctx context.Context, cfg *Config, log *plog.Logger, opts ...Option) (*Sdk, error) {
	store, closer, err := OpenSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sdk := NewSdkWithStore(cfg, store, log, opts...)
	sdk.closer = closer
	return sdk, nil
}

// NewSdkWithStore is NewSdk with a caller-supplied session store.
func NewSdkWithStore(cfg *Config, store session.Store, log *plog.Logger, opts ...Option) *Sdk {
	if log == nil {
		log = plog.Discard()
	}
	base := []Option{
		WithLogger(log),
		WithRefreshRotation(cfg.RefreshRotation),
		WithRefreshTimeout(cfg.RefreshTimeout),
		WithRequestTimeout(cfg.RequestTimeout),
	}
	c := NewClient(cfg.BaseURL, store, append(base, opts...)...)
	return &Sdk{Config: cfg, Client: c, Auth: &AuthService{c: c}, Payroll: &PayrollService{c: c}}
}

// Close releases the session store connection, if any.
func (s *Sdk) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenSessionStore returns the session store named by cfg.SessionStore. The
// closer is nil for stores that hold no connection.
func OpenSessionStore(ctx context.Context, cfg *Config) (session.Store, io.Closer, error) {
	switch cfg.SessionStore {
	case StoreKeyring, "":
		return session.NewKeyringStore(cfg.BaseURL), nil, nil
	case StoreFile:
		path := cfg.SessionFile
		if path == "" {
			path = session.DefaultFilePath()
		}
		return session.NewFileStore(path, cfg.BaseURL), nil, nil
	case StoreMemory:
		return session.NewMemoryStore(), nil, nil
	case StoreRedis:
		rs, err := kv.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis session store: %w", err)
		}
		return session.NewKVStore(rs, cfg.BaseURL), rs, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
