package tasktype

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wil93/cms/internal/filecache"
)

// materializeExecutable writes the blob at digest to a temporary file with
// the executable bit set, for handoff to sandbox.Runner, which execs a
// path rather than accepting in-memory bytes (matching how a real sandbox
// bind-mounts a host file into the jailed root).
func materializeExecutable(ctx context.Context, cache *filecache.Cacher, digest filecache.Digest) (string, error) {
	dir, err := os.MkdirTemp("", "cms-exe-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "run")
	if err := filecache.GetToPath(ctx, cache, digest, path); err != nil {
		return "", err
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// materializeBytes writes content to a temporary file, for handing a
// checker's input/correct-output/contestant-output arguments to
// sandbox.Runner as file paths rather than in-memory bytes.
func materializeBytes(content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "cms-file-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "data")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
