// Package tensor provides the core tensor handle, shape and data type
// definitions shared by the engine, kernels and backends.
package tensor

import "fmt"

// DType is a constraint for supported tensor data types.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// Numeric is the subset of DType that supports arithmetic.
type Numeric interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// IsNumeric reports whether arithmetic kernels accept the type.
func (dt DataType) IsNumeric() bool {
	return dt != Bool && dt.Valid()
}

// Valid reports whether dt is one of the supported data types.
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= Bool
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// DataTypeOf returns the DataType matching the Go type T.
func DataTypeOf[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic(fmt.Sprintf("unsupported type %T", dummy))
	}
}
