package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashKnownVector(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("clipvault"))
	require.NoError(t, err)
	b, err := h.Hash([]byte("clipvault"))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestShortTruncates(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ba7816bf", Short([]byte("abc"), 8))
	require.Len(t, Short([]byte("abc"), 0), 64)
	require.Len(t, Short([]byte("abc"), 100), 64)
}
