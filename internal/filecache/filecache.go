// Package filecache implements a content-addressed blob store: the file
// cache that decouples the orchestrator host from arbitrarily many worker
// hosts by moving inputs and outputs as digests rather than live file
// handles.
//
// Grounded on infra/appengine/weetbix/internal/clustering/chunkstore, which
// plays the same content-addressed-blob role on top of
// cloud.google.com/go/storage in the retrieval pack.
package filecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"

	"go.chromium.org/luci/common/errors"
)

// Digest is a stable fingerprint identifying a blob. Equality defines blob
// identity. There is no reserved sentinel value for "known lost": that
// state is signaled out of band via ErrTombstoned.
type Digest string

// Empty reports whether d is the zero Digest (no blob referenced).
func (d Digest) Empty() bool { return d == "" }

func (d Digest) String() string { return string(d) }

// Description is optional metadata recorded alongside a blob at Put time,
// surfaced by Describe. It is never on the hot path.
type Description struct {
	Label string
	Size  int64
}

// Errors returned by Backend and Cacher methods.
var (
	ErrNotFound   = errors.New("filecache: digest not found")
	ErrTombstoned = errors.New("filecache: digest tombstoned")
)

// Backend is the storage tier a Cacher is built on: local disk for
// single-host deployments and tests, or cloud.google.com/go/storage for a
// production multi-worker deployment.
type Backend interface {
	// Write stores content under digest, overwriting nothing (content at a
	// given digest is immutable by construction: same bytes, same digest).
	Write(ctx context.Context, digest Digest, content io.Reader) error
	// Open streams the blob at digest. Returns ErrNotFound if unknown,
	// ErrTombstoned if marked known-lost.
	Open(ctx context.Context, digest Digest) (io.ReadCloser, error)
	// Exists reports whether digest is known to the backend (tombstoned
	// digests still report true: the blob is known, just unreadable).
	Exists(ctx context.Context, digest Digest) (bool, error)
	// Tombstone marks digest as known-lost. Idempotent.
	Tombstone(ctx context.Context, digest Digest) error
}

// Cacher is the File Cache handle passed to task-type executors and the
// orchestrator. It wraps a Backend with digest computation and an
// in-memory map of blob descriptions; blob contents are not cached, so
// every read goes to the backend.
type Cacher struct {
	backend Backend

	mu    sync.Mutex
	descs map[Digest]Description
}

// New wraps backend in a Cacher.
func New(backend Backend) *Cacher {
	return &Cacher{backend: backend, descs: make(map[Digest]Description)}
}

// Put computes the SHA-256 digest of content, stores it exactly once, and
// returns the digest. A second Put of identical bytes returns the same
// digest without duplicating storage, since Write is keyed by digest and a
// Backend is expected to treat re-writing an existing digest as a no-op.
func (c *Cacher) Put(ctx context.Context, content io.Reader, label string) (Digest, error) {
	h := sha256.New()
	tee := io.TeeReader(content, h)
	buf, err := io.ReadAll(tee)
	if err != nil {
		return "", errors.Annotate(err, "reading content to cache").Err()
	}
	digest := Digest(hex.EncodeToString(h.Sum(nil)))

	if err := c.backend.Write(ctx, digest, newByteReader(buf)); err != nil {
		return "", errors.Annotate(err, "writing digest %s", digest).Err()
	}

	c.mu.Lock()
	c.descs[digest] = Description{Label: label, Size: int64(len(buf))}
	c.mu.Unlock()

	return digest, nil
}

// PutBytes is a convenience wrapper around Put for in-memory content.
func (c *Cacher) PutBytes(ctx context.Context, content []byte, label string) (Digest, error) {
	return c.Put(ctx, newByteReader(content), label)
}

// Get streams the blob identified by digest.
func (c *Cacher) Get(ctx context.Context, digest Digest) (io.ReadCloser, error) {
	if digest.Empty() {
		return nil, errors.Reason("filecache: empty digest").Err()
	}
	rc, err := c.backend.Open(ctx, digest)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// GetBytes reads the whole blob identified by digest into memory.
func (c *Cacher) GetBytes(ctx context.Context, digest Digest) ([]byte, error) {
	rc, err := c.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Exists reports whether digest is known to the cache.
func (c *Cacher) Exists(ctx context.Context, digest Digest) (bool, error) {
	return c.backend.Exists(ctx, digest)
}

// Describe returns the metadata recorded at Put time, if any was kept in
// this process's memory (descriptions are not durable: a fresh process has
// none until it Puts again).
func (c *Cacher) Describe(digest Digest) (Description, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.descs[digest]
	return d, ok
}

// Tombstone marks digest as known-lost. Used by operators when a blob has
// been confirmed unrecoverable.
func (c *Cacher) Tombstone(ctx context.Context, digest Digest) error {
	return c.backend.Tombstone(ctx, digest)
}

type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
