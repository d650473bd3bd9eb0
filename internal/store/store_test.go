package store

import (
	"context"
	"path/filepath"
	"testing"

	"netchatbridge/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreSetGetRemove(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, exists, err := st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, st.Set(ctx, "bridge.!room", `{"counter":5}`))

	value, exists, err := st.Get(ctx, "bridge.!room")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, `{"counter":5}`, value)

	// Upsert overwrites in place.
	require.NoError(t, st.Set(ctx, "bridge.!room", `{"counter":6}`))
	value, _, err = st.Get(ctx, "bridge.!room")
	require.NoError(t, err)
	assert.Equal(t, `{"counter":6}`, value)

	require.NoError(t, st.Remove(ctx, "bridge.!room"))
	_, exists, err = st.Get(ctx, "bridge.!room")
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing an absent key is not an error.
	require.NoError(t, st.Remove(ctx, "bridge.!room"))
}

func TestStoreIterateOrdered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "c", "3"))
	require.NoError(t, st.Set(ctx, "a", "1"))
	require.NoError(t, st.Set(ctx, "b", "2"))

	var keys []string
	err := st.Iterate(ctx, func(key, value string) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestStoreIterateCallbackError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "a", "1"))
	require.NoError(t, st.Set(ctx, "b", "2"))

	var seen int
	err := st.Iterate(ctx, func(key, value string) error {
		seen++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, seen)
}

func TestStoreRejectsTraversalPath(t *testing.T) {
	_, err := New("../outside.db")
	assert.Error(t, err)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "bridge.!room", "payload"))
	require.NoError(t, st.Close())

	st, err = New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	value, exists, err := st.Get(ctx, "bridge.!room")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "payload", value)
}

func TestStoreEncryptionRoundTrip(t *testing.T) {
	t.Setenv(constants.EncryptionSecretEnvVar, "correct-horse-battery-staple")
	st := newTestStore(t)
	ctx := context.Background()

	secret := `{"external_room_password":"hunter2"}`
	require.NoError(t, st.Set(ctx, "bridge.!room", secret))

	value, exists, err := st.Get(ctx, "bridge.!room")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, secret, value)

	// The raw row must not contain the plaintext password.
	var raw string
	require.NoError(t, st.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, "bridge.!room").Scan(&raw))
	assert.NotContains(t, raw, "hunter2")

	// Iterate decrypts too.
	err = st.Iterate(ctx, func(key, value string) error {
		assert.Equal(t, secret, value)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreRejectsShortEncryptionSecret(t *testing.T) {
	t.Setenv(constants.EncryptionSecretEnvVar, "short")
	_, err := New(filepath.Join(t.TempDir(), "test.db"))
	assert.Error(t, err)
}
