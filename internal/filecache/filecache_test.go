package filecache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacher(t *testing.T) *Cacher {
	t.Helper()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return New(backend)
}

func TestPutIsContentAddressed(t *testing.T) {
	ctx := context.Background()
	c := newTestCacher(t)

	d1, err := c.PutBytes(ctx, []byte("hello world"), "greeting")
	require.NoError(t, err)
	d2, err := c.PutBytes(ctx, []byte("hello world"), "greeting-again")
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "identical bytes must produce the identical digest")

	other, err := c.PutBytes(ctx, []byte("goodbye world"), "farewell")
	require.NoError(t, err)
	assert.NotEqual(t, d1, other)
}

func TestGetBytesRoundTrips(t *testing.T) {
	ctx := context.Background()
	c := newTestCacher(t)

	content := []byte("the quick brown fox")
	d, err := c.PutBytes(ctx, content, "")
	require.NoError(t, err)

	got, err := c.GetBytes(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlobsAreImmutable(t *testing.T) {
	// blob-immutability invariant: writing to an already-occupied
	// digest path is a no-op, not a corruption of the first write.
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	d := Digest("deadbeef")
	require.NoError(t, backend.Write(ctx, d, bytes.NewReader([]byte("first"))))
	require.NoError(t, backend.Write(ctx, d, bytes.NewReader([]byte("second-should-be-ignored"))))

	rc, err := backend.Open(ctx, d)
	require.NoError(t, err)
	defer rc.Close()
	got := make([]byte, 5)
	_, err = rc.Read(got)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestGetUnknownDigestIsNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTestCacher(t)
	_, err := c.GetBytes(ctx, Digest("0000000000000000000000000000000000000000000000000000000000000000"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEmptyDigestErrors(t *testing.T) {
	c := newTestCacher(t)
	_, err := c.Get(context.Background(), Digest(""))
	require.Error(t, err)
}

func TestTombstoneMakesBlobUnreadableButStillExists(t *testing.T) {
	ctx := context.Background()
	c := newTestCacher(t)

	d, err := c.PutBytes(ctx, []byte("doomed"), "")
	require.NoError(t, err)

	require.NoError(t, c.Tombstone(ctx, d))

	_, err = c.GetBytes(ctx, d)
	assert.ErrorIs(t, err, ErrTombstoned)

	exists, err := c.Exists(ctx, d)
	require.NoError(t, err)
	assert.True(t, exists, "a tombstoned digest is still known, just unreadable")
}

func TestGetToPathMaterializesAtomically(t *testing.T) {
	ctx := context.Background()
	c := newTestCacher(t)

	d, err := c.PutBytes(ctx, []byte("materialize me"), "")
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "nested", "out.bin")
	require.NoError(t, GetToPath(ctx, c, d, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "materialize me", string(got))
}

func TestDescribeOnlyKnowsWhatThisProcessPut(t *testing.T) {
	c := newTestCacher(t)
	_, ok := c.Describe(Digest("never-put"))
	assert.False(t, ok)

	d, err := c.PutBytes(context.Background(), []byte("x"), "my-label")
	require.NoError(t, err)
	desc, ok := c.Describe(d)
	require.True(t, ok)
	assert.Equal(t, "my-label", desc.Label)
	assert.Equal(t, int64(1), desc.Size)
}
