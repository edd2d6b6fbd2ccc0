package filecache

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.chromium.org/luci/common/errors"
)

// LocalBackend stores blobs on local disk, sharded by the first two hex
// characters of the digest (the same fan-out directory layout a local
// object cache typically uses to avoid one huge flat directory), with an
// atomic rename-into-place on write so a reader never observes a partial
// file.
type LocalBackend struct {
	root string
}

// NewLocalBackend returns a Backend rooted at dir. The directory is created
// if it doesn't exist.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Annotate(err, "creating file cache root %s", dir).Err()
	}
	return &LocalBackend{root: dir}, nil
}

func (b *LocalBackend) path(digest Digest) string {
	s := string(digest)
	if len(s) < 2 {
		return filepath.Join(b.root, "blobs", s)
	}
	return filepath.Join(b.root, "blobs", s[:2], s)
}

func (b *LocalBackend) tombstonePath(digest Digest) string {
	return b.path(digest) + ".tombstone"
}

func (b *LocalBackend) Write(ctx context.Context, digest Digest, content io.Reader) error {
	dst := b.path(digest)
	if _, err := os.Stat(dst); err == nil {
		return nil // already present: Put is idempotent
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Annotate(err, "creating shard directory").Err()
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "tmp-*")
	if err != nil {
		return errors.Annotate(err, "creating temp file").Err()
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return errors.Annotate(err, "writing content").Err()
	}
	if err := tmp.Close(); err != nil {
		return errors.Annotate(err, "closing temp file").Err()
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Annotate(err, "renaming into place").Err()
	}
	return nil
}

func (b *LocalBackend) Open(ctx context.Context, digest Digest) (io.ReadCloser, error) {
	if _, err := os.Stat(b.tombstonePath(digest)); err == nil {
		return nil, ErrTombstoned
	}
	f, err := os.Open(b.path(digest))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Annotate(err, "opening digest %s", digest).Err()
	}
	return f, nil
}

func (b *LocalBackend) Exists(ctx context.Context, digest Digest) (bool, error) {
	if _, err := os.Stat(b.tombstonePath(digest)); err == nil {
		return true, nil
	}
	_, err := os.Stat(b.path(digest))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotate(err, "stat digest %s", digest).Err()
	}
	return true, nil
}

func (b *LocalBackend) Tombstone(ctx context.Context, digest Digest) error {
	f, err := os.Create(b.tombstonePath(digest))
	if err != nil {
		return errors.Annotate(err, "tombstoning digest %s", digest).Err()
	}
	return f.Close()
}

// GetToPath materializes the blob at digest into path, atomically. It is a
// standalone helper (not a Backend method) that reads through the Cacher,
// so it works against whichever Backend the Cacher wraps; the task-type
// executors use it to hand executables to the sandbox as local paths.
func GetToPath(ctx context.Context, c *Cacher, digest Digest, path string) error {
	rc, err := c.Get(ctx, digest)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Annotate(err, "creating destination directory").Err()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "materialize-*")
	if err != nil {
		return errors.Annotate(err, "creating temp file").Err()
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return errors.Annotate(err, "copying blob to %s", path).Err()
	}
	if err := tmp.Close(); err != nil {
		return errors.Annotate(err, "closing temp file").Err()
	}
	return os.Rename(tmp.Name(), path)
}
