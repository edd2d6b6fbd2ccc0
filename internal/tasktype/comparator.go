package tasktype

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/sandbox"
)

// ExactComparator requires byte-for-byte equality.
type ExactComparator struct{}

func (ExactComparator) Compare(ctx context.Context, cache *filecache.Cacher, input []byte, expected filecache.Digest, actual []byte, managers map[string]filecache.Digest) (float64, string, error) {
	want, err := cache.GetBytes(ctx, expected)
	if err != nil {
		return 0, "", err
	}
	if bytes.Equal(want, actual) {
		return 1.0, "Output is correct", nil
	}
	return 0.0, "Output isn't correct", nil
}

// WhitespaceComparator normalizes runs of whitespace (and trailing
// newlines) before comparing, the default CMS "diff" comparator.
type WhitespaceComparator struct{}

func (WhitespaceComparator) Compare(ctx context.Context, cache *filecache.Cacher, input []byte, expected filecache.Digest, actual []byte, managers map[string]filecache.Digest) (float64, string, error) {
	want, err := cache.GetBytes(ctx, expected)
	if err != nil {
		return 0, "", err
	}
	if normalizeWhitespace(want) == normalizeWhitespace(actual) {
		return 1.0, "Output is correct", nil
	}
	return 0.0, "Output isn't correct", nil
}

func normalizeWhitespace(b []byte) string {
	fields := strings.Fields(string(b))
	return strings.Join(fields, " ")
}

// checkerWallLimit bounds the checker process itself; it grades the
// contestant's output rather than being graded, so it gets a fixed
// generous allowance independent of the testcase's own time limit.
const checkerWallLimit = 10 * time.Second

// CheckerComparator invokes a task-provided checker binary as a second
// sandboxed process, the standard CMS "comparator" manager: the checker is
// run as `checker input correct_output contestant_output`, and its stdout
// is the outcome line (a float in [0, 1]) followed by a human-readable
// message.
type CheckerComparator struct {
	runner sandbox.Runner
}

func (c CheckerComparator) Compare(ctx context.Context, cache *filecache.Cacher, input []byte, expected filecache.Digest, actual []byte, managers map[string]filecache.Digest) (float64, string, error) {
	checkerDigest, ok := managers[batchCheckerManagerKey]
	if !ok {
		return 0, "", errors.Reason("checker comparator: dataset has no checker manager").Err()
	}
	want, err := cache.GetBytes(ctx, expected)
	if err != nil {
		return 0, "", err
	}

	checkerPath, err := materializeExecutable(ctx, cache, checkerDigest)
	if err != nil {
		return 0, "", errors.Annotate(err, "materializing checker").Err()
	}
	inputPath, err := materializeBytes(input)
	if err != nil {
		return 0, "", errors.Annotate(err, "materializing checker input").Err()
	}
	expectedPath, err := materializeBytes(want)
	if err != nil {
		return 0, "", errors.Annotate(err, "materializing checker correct output").Err()
	}
	actualPath, err := materializeBytes(actual)
	if err != nil {
		return 0, "", errors.Annotate(err, "materializing checker contestant output").Err()
	}

	result, err := c.runner.Run(ctx, []string{checkerPath, inputPath, expectedPath, actualPath}, nil, sandbox.Limits{Wall: checkerWallLimit})
	if err != nil {
		return 0, "", errors.Annotate(err, "running checker").Err()
	}
	if result.Status != sandbox.ExitOK {
		return 0, "", errors.Reason("checker comparator: checker process didn't exit cleanly (status %v)", result.Status).Err()
	}
	return parseCheckerOutput(result.Stdout)
}

// parseCheckerOutput splits a checker's stdout into its outcome line and
// trailing message, per the CMS checker protocol.
func parseCheckerOutput(stdout []byte) (float64, string, error) {
	line, rest, _ := strings.Cut(string(stdout), "\n")
	outcome, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, "", errors.Annotate(err, "parsing checker outcome line").Err()
	}
	return outcome, strings.TrimSpace(rest), nil
}
