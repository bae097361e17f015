package pooling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollama/filmvision/ml"
)

func TestGlobalAvgPool2D(t *testing.T) {
	x, err := ml.FromFloats([]float32{1, 2, 3, 4, 10, 10, 10, 10}, 1, 2, 2, 2)
	require.NoError(t, err)
	y, err := GlobalAvgPool2D(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1, 1}, y.Shape())
	assert.Equal(t, []float32{2.5, 10}, y.Floats())
}

func TestApplyOnUnitSpatial(t *testing.T) {
	x, err := ml.FromFloats([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 2, 3, 1, 1)
	require.NoError(t, err)

	pooled, err := Apply(TypeAvg, x)
	require.NoError(t, err)
	plain, err := Apply(TypeNone, x)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, pooled.Shape())
	assert.Equal(t, plain.Floats(), pooled.Floats())
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": TypeNone, "none": TypeNone, "avg": TypeAvg} {
		got, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("max")
	assert.Error(t, err)
}
