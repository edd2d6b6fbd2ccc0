package gradelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelRecognizesEachName(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("debug"))
	assert.Equal(t, Warning, ParseLevel("warning"))
	assert.Equal(t, Error, ParseLevel("error"))
	assert.Equal(t, Info, ParseLevel("info"))
	assert.Equal(t, Info, ParseLevel(""), "unrecognized or empty defaults to Info")
	assert.Equal(t, Info, ParseLevel("bogus"))
}

func TestNewWithLevelSuppressesBelowMinLevel(t *testing.T) {
	l := NewWithLevel(Warning).(*stdLogger)
	var buf testBuffer
	l.out.SetOutput(&buf)

	l.Infof("should be suppressed")
	assert.Empty(t, buf.String())

	l.Warningf("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestFieldsPropagatesMinLevelToDerivedLogger(t *testing.T) {
	l := NewWithLevel(Error).(*stdLogger)
	var buf testBuffer
	l.out.SetOutput(&buf)

	derived := l.Fields("submission", 1).(*stdLogger)
	derived.Warningf("still below Error")
	assert.Empty(t, buf.String(), "a field-scoped logger keeps its parent's min level")

	derived.Errorf("visible")
	assert.Contains(t, buf.String(), "submission=1")
}

func TestGetReturnsDefaultLoggerWhenNoneAttached(t *testing.T) {
	ctx := context.Background()
	l := Get(ctx)
	assert.NotNil(t, l)
}

func TestWithLoggerRoundTrips(t *testing.T) {
	ctx := context.Background()
	custom := NewWithLevel(Debug)
	ctx = WithLogger(ctx, custom)
	assert.Same(t, custom, Get(ctx))
}

type testBuffer struct {
	data []byte
}

func (b *testBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *testBuffer) String() string { return string(b.data) }
