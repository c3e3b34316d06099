package secrets_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-session/secrets"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := secrets.NewMemoryStore()

	v, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, v)

	value := []byte("blob")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), got, "stored value must be a copy")

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")

	t.Run("requires directory and passphrase", func(t *testing.T) {
		_, err := secrets.NewFileStore("", "pw")
		require.Error(t, err)
		_, err = secrets.NewFileStore(dir, "")
		require.Error(t, err)
	})

	s, err := secrets.NewFileStore(dir, "correct horse")
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		v, err := s.Get(ctx, "sessions")
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("round trip and replace", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "sessions", []byte(`[{"id":"a"}]`)))
		require.NoError(t, s.Set(ctx, "sessions", []byte(`[]`)))

		v, err := s.Get(ctx, "sessions")
		require.NoError(t, err)
		require.Equal(t, []byte(`[]`), v)
	})

	t.Run("values are not stored in plain text", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "plain", []byte("super-secret-token")))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			require.NotContains(t, string(data), "super-secret-token")
		}
	})

	t.Run("reopen with same passphrase", func(t *testing.T) {
		reopened, err := secrets.NewFileStore(dir, "correct horse")
		require.NoError(t, err)
		v, err := reopened.Get(ctx, "sessions")
		require.NoError(t, err)
		require.Equal(t, []byte(`[]`), v)
	})

	t.Run("wrong passphrase cannot decrypt", func(t *testing.T) {
		other, err := secrets.NewFileStore(dir, "wrong")
		require.NoError(t, err)
		_, err = other.Get(ctx, "sessions")
		require.ErrorIs(t, err, secrets.ErrDecrypt)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "sessions"))
		require.NoError(t, s.Delete(ctx, "sessions"))
		v, err := s.Get(ctx, "sessions")
		require.NoError(t, err)
		require.Nil(t, v)
	})
}
