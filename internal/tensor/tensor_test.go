package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsChecksDType(t *testing.T) {
	raw, _ := NewRaw(Shape{2, 2}, Int32, CPU)

	typed, err := As[int32](raw)
	require.NoError(t, err)
	assert.Same(t, raw, typed.Raw())

	_, err = As[float32](raw)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = As[float32](nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTensorAt(t *testing.T) {
	raw, _ := NewRaw(Shape{2, 3}, Float64, CPU)
	copy(raw.AsFloat64(), []float64{0, 1, 2, 3, 4, 5})
	typed := MustAs[float64](raw)

	assert.Equal(t, 5.0, typed.At(1, 2))
	assert.Equal(t, 1.0, typed.At(0, 1))
	assert.Panics(t, func() { typed.At(2, 0) })
	assert.Panics(t, func() { typed.At(0) })
}

func TestDataTypeOf(t *testing.T) {
	assert.Equal(t, Float32, DataTypeOf[float32]())
	assert.Equal(t, Int64, DataTypeOf[int64]())
	assert.Equal(t, Bool, DataTypeOf[bool]())
	assert.False(t, Bool.IsNumeric())
	assert.True(t, Uint8.IsNumeric())
}
