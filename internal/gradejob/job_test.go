package gradejob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/operation"
)

func TestCompilationJobRoundTrips(t *testing.T) {
	j := &CompilationJob{
		Common: Common{
			Operation:      operation.Operation{Kind: operation.Compilation, ObjectID: 7, DatasetID: 2},
			TaskType:       "Batch",
			TaskTypeParams: map[string]interface{}{"compilation": "alone"},
			Language:       "c++17",
			Plus:           map[string]interface{}{"exit_status": "0"},
		},
		Files:           map[string]filecache.Digest{"main.cpp": "abc123"},
		Executables:     map[string]filecache.Digest{"main": "def456"},
		CompilationText: "Compilation succeeded",
		ExpectedTries:   2,
	}

	data, err := Encode(j)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	got, ok := decoded.(*CompilationJob)
	require.True(t, ok)
	assert.Equal(t, j, got)
}

func TestEvaluationJobRoundTrips(t *testing.T) {
	j := &EvaluationJob{
		Common: Common{
			Operation: operation.Operation{Kind: operation.Evaluation, ObjectID: 7, DatasetID: 2, Codename: "case1"},
			TaskType:  "Batch",
			Language:  "c++17",
		},
		Executables:    map[string]filecache.Digest{"main": "def456"},
		Input:          "in-digest",
		Output:         "out-digest",
		TimeLimit:      2.5,
		MemoryLimit:    256 << 20,
		Codename:       "case1",
		Outcome:        1.0,
		EvaluationText: "Output is correct",
		ExecutionTime:  0.123,
		Memory:         1024,
		ExpectedTries:  0,
	}

	data, err := Encode(j)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	got, ok := decoded.(*EvaluationJob)
	require.True(t, ok)
	assert.Equal(t, j, got)
}

func TestDecodeUnknownVariant(t *testing.T) {
	_, err := Decode([]byte(`{"variant":"bogus","payload":{}}`))
	require.Error(t, err)
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestFromOperationBuildsMatchingShape(t *testing.T) {
	op := operation.Operation{Kind: operation.Compilation, ObjectID: 1, DatasetID: 1}
	j, err := FromOperation(op)
	require.NoError(t, err)
	_, ok := j.(*CompilationJob)
	assert.True(t, ok)
	assert.Equal(t, op, j.Op())

	op2 := operation.Operation{Kind: operation.UserTestEvaluation, ObjectID: 1, DatasetID: 1}
	j2, err := FromOperation(op2)
	require.NoError(t, err)
	_, ok = j2.(*EvaluationJob)
	assert.True(t, ok)
}

func TestFromOperationUnknownKind(t *testing.T) {
	_, err := FromOperation(operation.Operation{Kind: operation.Kind(99)})
	require.Error(t, err)
}

func TestSetPlusCreatesMapLazily(t *testing.T) {
	var c Common
	c.SetPlus("memory", 1024)
	assert.Equal(t, 1024, c.Plus["memory"])
}
