package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("content")
	require.NoError(t, store.Save(context.Background(), "page.html", payload))

	payload[0] = 'C'
	got, ok := store.Get("page.html")
	require.True(t, ok)
	require.Equal(t, "content", string(got))
	require.Equal(t, 1, store.Len())
}

func TestGetMissingObject(t *testing.T) {
	t.Parallel()

	store := New()
	_, ok := store.Get("absent")
	require.False(t, ok)
}
