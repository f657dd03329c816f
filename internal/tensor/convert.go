package tensor

import (
	"fmt"
	"reflect"
)

// Convert normalizes value into a RawTensor.
//
// Existing tensors (*RawTensor, or anything exposing Raw() *RawTensor) are
// returned unchanged: same handle, same storage, no copy. Literal values are
// Go scalars or nested slices/arrays of float32, float64, int, int32, int64,
// uint8 or bool (also through []any); their shape and dtype are inferred and
// fresh storage is taken from alloc. Go int maps to Int32.
//
// argName and opName only feed error messages.
func Convert(value any, argName, opName string, alloc Allocator) (*RawTensor, error) {
	switch v := value.(type) {
	case *RawTensor:
		if v == nil {
			return nil, InvalidArgumentf("argument '%s' passed to '%s' must be a tensor or tensor-like, got nil", argName, opName)
		}
		if v.IsReleased() {
			return nil, InvalidArgumentf("argument '%s' passed to '%s' refers to released tensor #%d", argName, opName, v.ID())
		}
		return v, nil
	case interface{ Raw() *RawTensor }:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, InvalidArgumentf("argument '%s' passed to '%s' must be a tensor or tensor-like, got nil %T", argName, opName, v)
		}
		return Convert(v.Raw(), argName, opName, alloc)
	case nil:
		return nil, InvalidArgumentf("argument '%s' passed to '%s' must be a tensor or tensor-like, got nil", argName, opName)
	}

	lit, err := inferLiteral(reflect.ValueOf(value))
	if err != nil {
		return nil, InvalidArgumentf("argument '%s' passed to '%s' must be a tensor or tensor-like: %v", argName, opName, err)
	}

	raw, err := alloc.Alloc(lit.shape, lit.dtype)
	if err != nil {
		return nil, err
	}
	lit.fill(raw)
	return raw, nil
}

// literal is the flattened form of a nested Go value.
type literal struct {
	shape  Shape
	dtype  DataType
	leaves []reflect.Value
}

func inferLiteral(v reflect.Value) (*literal, error) {
	lit := &literal{dtype: -1}
	lit.shape = probeShape(v)
	if err := lit.walk(v, 0); err != nil {
		return nil, err
	}
	if lit.dtype < 0 {
		// Empty literal: take the dtype from the static element type, if any.
		dt, ok := staticDataType(v.Type())
		if !ok {
			dt = Float32
		}
		lit.dtype = dt
	}
	return lit, nil
}

// probeShape follows the first element at each level.
func probeShape(v reflect.Value) Shape {
	var shape Shape
	for {
		v = unwrapInterface(v)
		if !isSequence(v) {
			return shape
		}
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			return shape
		}
		v = v.Index(0)
	}
}

func (l *literal) walk(v reflect.Value, depth int) error {
	v = unwrapInterface(v)
	if depth == len(l.shape) {
		if isSequence(v) {
			return fmt.Errorf("ragged nested sequence: unexpected sequence at depth %d, expected shape %v", depth, l.shape)
		}
		dt, ok := scalarDataType(v)
		if !ok {
			return fmt.Errorf("unsupported element type %s", describe(v))
		}
		if l.dtype >= 0 && l.dtype != dt {
			return fmt.Errorf("mixed element types %s and %s", l.dtype, dt)
		}
		l.dtype = dt
		l.leaves = append(l.leaves, v)
		return nil
	}

	if !isSequence(v) {
		return fmt.Errorf("ragged nested sequence: element at depth %d is %s, expected a sequence of length %d",
			depth, describe(v), l.shape[depth])
	}
	if v.Len() != l.shape[depth] {
		return fmt.Errorf("ragged nested sequence: length %d at depth %d, expected %d (shape %v)",
			v.Len(), depth, l.shape[depth], l.shape)
	}
	for i := 0; i < v.Len(); i++ {
		if err := l.walk(v.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (l *literal) fill(raw *RawTensor) {
	switch l.dtype {
	case Float32:
		data := raw.AsFloat32()
		for i, v := range l.leaves {
			data[i] = float32(v.Float())
		}
	case Float64:
		data := raw.AsFloat64()
		for i, v := range l.leaves {
			data[i] = v.Float()
		}
	case Int32:
		data := raw.AsInt32()
		for i, v := range l.leaves {
			data[i] = int32(v.Int()) //nolint:gosec // Go int literals map to int32, wrapping like the platform does
		}
	case Int64:
		data := raw.AsInt64()
		for i, v := range l.leaves {
			data[i] = v.Int()
		}
	case Uint8:
		data := raw.AsUint8()
		for i, v := range l.leaves {
			data[i] = uint8(v.Uint())
		}
	case Bool:
		data := raw.AsBool()
		for i, v := range l.leaves {
			data[i] = v.Bool()
		}
	}
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

func isSequence(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	k := v.Kind()
	return k == reflect.Slice || k == reflect.Array
}

func scalarDataType(v reflect.Value) (DataType, bool) {
	if !v.IsValid() {
		return 0, false
	}
	return kindDataType(v.Kind())
}

func kindDataType(k reflect.Kind) (DataType, bool) {
	switch k {
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.Int, reflect.Int32:
		return Int32, true
	case reflect.Int64:
		return Int64, true
	case reflect.Uint8:
		return Uint8, true
	case reflect.Bool:
		return Bool, true
	default:
		return 0, false
	}
}

func staticDataType(t reflect.Type) (DataType, bool) {
	for t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		t = t.Elem()
	}
	if t == nil {
		return 0, false
	}
	return kindDataType(t.Kind())
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}
