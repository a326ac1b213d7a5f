package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		name     string
		input    ValueType
		expected string
	}{
		{"i32", ValueTypeI32, "i32"},
		{"i64", ValueTypeI64, "i64"},
		{"unknown", 0x7d, "unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ValueTypeName(tt.input))
		})
	}
}

func TestI32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 2147483647, -2147483648} {
		val := I32(v)
		require.Equal(t, ValueTypeI32, val.Type())
		require.Equal(t, v, val.ToI32())
	}
}

func TestI64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 9223372036854775807, -9223372036854775808} {
		val := I64(v)
		require.Equal(t, ValueTypeI64, val.Type())
		require.Equal(t, v, val.ToI64())
	}
}

func TestZeroValue(t *testing.T) {
	require.Equal(t, I32(0), ZeroValue(ValueTypeI32))
	require.Equal(t, I64(0), ZeroValue(ValueTypeI64))
}

func TestValueString(t *testing.T) {
	require.Equal(t, "i32:5", I32(5).String())
	require.Equal(t, "i64:-5", I64(-5).String())
}
