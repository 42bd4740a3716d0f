// Package session persists the operator's login state: bearer tokens, the
// wallet used to log in and the active organization. The SDK depends only
// on the Store interface so tests and headless deployments can swap the
// backend.
package session

import (
	"context"
	"errors"
	"fmt"
)

// Field names one independently settable value of a session.
type Field string

const (
	AccessToken  Field = "access_token"
	RefreshToken Field = "refresh_token"
	Wallet       Field = "wallet"
	ActiveOrg    Field = "org_id"
)

// Fields lists every field a Store may hold.
var Fields = []Field{AccessToken, RefreshToken, Wallet, ActiveOrg}

// Store is a key-value capability over named string fields.
//
// Get returns "" and a nil error when the field is absent; errors are
// reserved for backend failures. Delete of an absent field is not an error.
type Store interface {
	Get(ctx context.Context, f Field) (string, error)
	Set(ctx context.Context, f Field, value string) error
	Delete(ctx context.Context, f Field) error
}

// Session is a snapshot of every field.
type Session struct {
	AccessToken  string
	RefreshToken string
	Wallet       string
	ActiveOrg    string
}

// Authenticated reports whether an access token is present.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Load reads all fields from the store.
func Load(ctx context.Context, st Store) (Session, error) {
	var out Session
	dst := map[Field]*string{
		AccessToken:  &out.AccessToken,
		RefreshToken: &out.RefreshToken,
		Wallet:       &out.Wallet,
		ActiveOrg:    &out.ActiveOrg,
	}
	for _, f := range Fields {
		v, err := st.Get(ctx, f)
		if err != nil {
			return Session{}, fmt.Errorf("read %s: %w", f, err)
		}
		*dst[f] = v
	}
	return out, nil
}

// SaveTokens stores both tokens. An empty refresh token leaves the stored
// one untouched.
func SaveTokens(ctx context.Context, st Store, access, refresh string) error {
	if err := st.Set(ctx, AccessToken, access); err != nil {
		return fmt.Errorf("write %s: %w", AccessToken, err)
	}
	if refresh == "" {
		return nil
	}
	if err := st.Set(ctx, RefreshToken, refresh); err != nil {
		return fmt.Errorf("write %s: %w", RefreshToken, err)
	}
	return nil
}

// ClearTokens removes the access and refresh tokens and keeps the wallet
// and active organization.
func ClearTokens(ctx context.Context, st Store) error {
	return deleteFields(ctx, st, AccessToken, RefreshToken)
}

// Clear removes every field.
func Clear(ctx context.Context, st Store) error {
	return deleteFields(ctx, st, Fields...)
}

func deleteFields(ctx context.Context, st Store, fields ...Field) error {
	var errs []error
	for _, f := range fields {
		if err := st.Delete(ctx, f); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}
