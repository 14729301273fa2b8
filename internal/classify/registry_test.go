package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollsimy/rapid/internal/types"
)

func passthrough(name string) Classifier {
	return funcClassifier{
		name: name,
		fn: func(types.LogBlock, types.FaultRecord) (Outcome, error) {
			return Outcome{Status: types.StatusPassed}, nil
		},
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(passthrough("CoreMark")))
	require.NoError(t, reg.Register(passthrough("matmul")))

	// Lookup is case-insensitive.
	c, ok := reg.Lookup("coremark")
	require.True(t, ok)
	assert.Equal(t, "CoreMark", c.Name())
	_, ok = reg.Lookup("COREMARK")
	assert.True(t, ok)

	_, ok = reg.Lookup("dhrystone")
	assert.False(t, ok)

	assert.Equal(t, []string{"coremark", "matmul"}, reg.Names())
}

func TestRegistry_Duplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(passthrough("coremark")))
	assert.Error(t, reg.Register(passthrough("Coremark")), "duplicate registration must be rejected")
	assert.Error(t, reg.Register(passthrough("  ")), "blank names must be rejected")
}
