package tensor

import "fmt"

// Tensor is a typed view over a RawTensor.
// It adds no state of its own: it exists so callers can read results as []T
// without switching on DataType.
//
// Example:
//
//	raw, _ := ops.Cumprod(eng, []float32{1, 2, 3})
//	t, _ := tensor.As[float32](raw)
//	fmt.Println(t.Data()) // [1 2 6]
type Tensor[T DType] struct {
	raw *RawTensor
}

// As re-types raw as a Tensor[T]. The dtype of raw must match T.
func As[T DType](raw *RawTensor) (*Tensor[T], error) {
	if raw == nil {
		return nil, InvalidArgumentf("nil tensor")
	}
	if want := DataTypeOf[T](); raw.DType() != want {
		return nil, InvalidArgumentf("tensor #%d has dtype %s, requested %s", raw.ID(), raw.DType(), want)
	}
	return &Tensor[T]{raw: raw}, nil
}

// MustAs is like As but panics on a dtype mismatch.
func MustAs[T DType](raw *RawTensor) *Tensor[T] {
	t, err := As[T](raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T]) Raw() *RawTensor {
	return t.raw
}

// Shape returns the tensor's shape.
func (t *Tensor[T]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T]) DType() DataType {
	return t.raw.DType()
}

// NumElements returns the total number of elements.
func (t *Tensor[T]) NumElements() int {
	return t.raw.NumElements()
}

// Data returns a typed slice view of the tensor's data.
// The slice directly accesses the underlying memory (zero-copy) and must be
// treated as read-only.
func (t *Tensor[T]) Data() []T {
	return Values[T](t.raw)
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T]) At(indices ...int) T {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return t.Data()[offset]
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor[%s]%v", t.raw.DType(), t.raw.Shape())
}

// Values returns the data of raw as []T. Panics if the dtype does not match T.
func Values[T DType](raw *RawTensor) []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(raw.AsFloat32()).([]T)
	case float64:
		return any(raw.AsFloat64()).([]T)
	case int32:
		return any(raw.AsInt32()).([]T)
	case int64:
		return any(raw.AsInt64()).([]T)
	case uint8:
		return any(raw.AsUint8()).([]T)
	case bool:
		return any(raw.AsBool()).([]T)
	default:
		panic("unsupported type")
	}
}
