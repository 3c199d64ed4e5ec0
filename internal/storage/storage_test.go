package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	key, size, err := store.Save(context.Background(), "screenshot.PNG", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	require.EqualValues(t, 16, size)
	require.True(t, strings.HasSuffix(key, ".png"))

	rc, err := store.Open(context.Background(), key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "fake image bytes", string(data))

	require.NoError(t, store.Delete(context.Background(), key))
	_, err = store.Open(context.Background(), key)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	require.NoError(t, store.Delete(context.Background(), key))
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../etc/passwd")
	require.Error(t, err)

	err = store.Delete(context.Background(), "/abs/path")
	require.Error(t, err)
}

func TestFilesystemStoreRequiresRoot(t *testing.T) {
	_, err := NewFilesystemStore(" ")
	require.Error(t, err)
}
