// Package api includes constants and types shared between the host-facing
// runtime API and its internal implementation.
package api

import "fmt"

// ValueType describes a numeric type used in WebAssembly 1.0 (20191205).
// This core only carries the two integer types; floats, vectors and
// reference types are out of scope.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
)

// ValueTypeName returns the WebAssembly text format name of t, or "unknown"
// if t isn't a recognized ValueType.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	}
	return "unknown"
}

// Value is a WebAssembly operand: a tagged union over the two supported
// numeric types. The zero Value carries no type tag: its Type is 0, not
// ValueTypeI32, and it is not equal to I32(0).
type Value struct {
	vType ValueType
	bits  uint64
}

// I32 returns a Value of ValueTypeI32 holding v.
func I32(v int32) Value {
	return Value{vType: ValueTypeI32, bits: uint64(uint32(v))}
}

// I64 returns a Value of ValueTypeI64 holding v.
func I64(v int64) Value {
	return Value{vType: ValueTypeI64, bits: uint64(v)}
}

// Type returns the ValueType this Value was constructed with.
func (v Value) Type() ValueType {
	return v.vType
}

// ToI32 returns the value as a signed 32-bit integer, truncating the
// underlying bits regardless of Type.
func (v Value) ToI32() int32 {
	return int32(uint32(v.bits))
}

// ToI64 returns the value as a signed 64-bit integer.
func (v Value) ToI64() int64 {
	return int64(v.bits)
}

// String renders the value for diagnostics, e.g. "i32:5".
func (v Value) String() string {
	switch v.vType {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.ToI32())
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.ToI64())
	default:
		return fmt.Sprintf("?:%#x", v.bits)
	}
}

// ZeroValue returns the zero value for a declared local of type t.
func ZeroValue(t ValueType) Value {
	switch t {
	case ValueTypeI64:
		return I64(0)
	default:
		return I32(0)
	}
}
