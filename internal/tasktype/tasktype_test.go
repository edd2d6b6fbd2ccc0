package tasktype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownTaskType(t *testing.T) {
	_, err := Get("NoSuchTaskType", nil)
	require.Error(t, err)
}

func TestGetKnownTaskTypesFromRegistry(t *testing.T) {
	for _, name := range []string{"Batch", "Communication", "OutputOnly", "TwoSteps"} {
		tt, err := Get(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, tt.Name())
	}
}

func TestParamStringDefaultsAndCoercion(t *testing.T) {
	assert.Equal(t, "whitespace", paramString(nil, "comparator", "whitespace"))
	assert.Equal(t, "exact", paramString(map[string]interface{}{"comparator": "exact"}, "comparator", "whitespace"))
	assert.Equal(t, "3", paramString(map[string]interface{}{"n": 3}, "n", "0"))
}
