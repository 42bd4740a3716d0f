package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/quatton/paydesk/pkg/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testBaseURL = "http://localhost:8000"

func backends(t *testing.T) map[string]Store {
	t.Helper()

	keyring.MockInit()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory":  NewMemoryStore(),
		"file":    NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"), testBaseURL),
		"keyring": NewKeyringStore(testBaseURL),
		"redis":   NewKVStore(kv.NewRedisStoreFromClient(client), testBaseURL),
	}
}

func TestStoreContract(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := st.Get(ctx, AccessToken)
			require.NoError(t, err)
			assert.Empty(t, v)

			require.NoError(t, st.Set(ctx, AccessToken, "A1"))
			require.NoError(t, st.Set(ctx, RefreshToken, "R1"))
			require.NoError(t, st.Set(ctx, Wallet, "0xabc"))
			require.NoError(t, st.Set(ctx, ActiveOrg, "7"))

			s, err := Load(ctx, st)
			require.NoError(t, err)
			assert.Equal(t, Session{AccessToken: "A1", RefreshToken: "R1", Wallet: "0xabc", ActiveOrg: "7"}, s)
			assert.True(t, s.Authenticated())

			require.NoError(t, ClearTokens(ctx, st))
			s, err = Load(ctx, st)
			require.NoError(t, err)
			assert.Equal(t, Session{Wallet: "0xabc", ActiveOrg: "7"}, s)
			assert.False(t, s.Authenticated())

			require.NoError(t, Clear(ctx, st))
			s, err = Load(ctx, st)
			require.NoError(t, err)
			assert.Equal(t, Session{}, s)

			require.NoError(t, st.Delete(ctx, Wallet), "deleting an absent field is not an error")
		})
	}
}

func TestSaveTokensKeepsRefreshWhenEmpty(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStoreFrom(Session{AccessToken: "A1", RefreshToken: "R1"})

	require.NoError(t, SaveTokens(ctx, st, "A2", ""))

	s, err := Load(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "A2", s.AccessToken)
	assert.Equal(t, "R1", s.RefreshToken)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "https://example.com", NormalizeKey(" https://Example.com/ "))
	assert.Equal(t, NormalizeKey("http://a/"), NormalizeKey("http://A"))
}

func TestFileStoreScopesByBaseURL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	a := NewFileStore(path, "http://a.example")
	b := NewFileStore(path, "http://b.example")

	require.NoError(t, a.Set(ctx, AccessToken, "token-a"))
	require.NoError(t, b.Set(ctx, AccessToken, "token-b"))

	v, err := a.Get(ctx, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "token-a", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc fileDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, doc.Sessions, 2)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path, testBaseURL).Get(context.Background(), AccessToken)
	require.Error(t, err)
}

func TestDefaultFilePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "paydesk", "session.json"), DefaultFilePath())
}

func TestEnsureParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deeply", "nested", "session.json")
	require.NoError(t, EnsureParentDir(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}
