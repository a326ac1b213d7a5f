package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmlet/wasmlet/api"
)

func TestNewStore_empty(t *testing.T) {
	s, err := NewStore(&Module{})
	require.NoError(t, err)
	require.Empty(t, s.Funcs)
	require.Nil(t, s.Memory)
	require.Empty(t, s.Module.Exports)
}

func TestNewStore_importsFirstThenInternal(t *testing.T) {
	m := &Module{
		TypeSection: []*FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		ImportSection: []*Import{
			{Module: "env", Field: "add", Desc: ImportDesc{Kind: ImportKindFunc, TypeIdx: 0}},
		},
		FunctionSection: []Index{0},
		CodeSection: []*Code{
			{Body: []Instruction{{Opcode: OpcodeEnd}}},
		},
	}

	s, err := NewStore(m)
	require.NoError(t, err)
	require.Len(t, s.Funcs, 2)
	require.NotNil(t, s.Funcs[0].External)
	require.Equal(t, "env", s.Funcs[0].External.Module)
	require.NotNil(t, s.Funcs[1].Internal)
}

func TestNewStore_duplicateExportLastWins(t *testing.T) {
	m := &Module{
		ExportSection: []*Export{
			{Name: "f", Desc: ExportDesc{Kind: ExportKindFunc, FuncIdx: 0}},
			{Name: "f", Desc: ExportDesc{Kind: ExportKindFunc, FuncIdx: 1}},
		},
	}
	s, err := NewStore(m)
	require.NoError(t, err)
	require.Equal(t, Index(1), s.Module.Exports["f"].Desc.FuncIdx)
}

func TestNewStore_memoryAndData(t *testing.T) {
	min := uint32(1)
	m := &Module{
		MemorySection: []Limits{{Min: min}},
		DataSection: []*Data{
			{Offset: 0, Init: []byte("hello")},
			{Offset: 5, Init: []byte("world")},
		},
	}
	s, err := NewStore(m)
	require.NoError(t, err)
	require.Len(t, s.Memory.Data, int(min)*PageSize)
	require.Equal(t, "helloworld", string(s.Memory.Data[:10]))
}

func TestNewStore_dataTooLarge(t *testing.T) {
	m := &Module{
		MemorySection: []Limits{{Min: 1}},
		DataSection:   []*Data{{Offset: PageSize - 2, Init: []byte("abcd")}},
	}
	_, err := NewStore(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "data too large")
}

func TestNewStore_dataWithoutMemory(t *testing.T) {
	m := &Module{DataSection: []*Data{{Offset: 0, Init: []byte("x")}}}
	_, err := NewStore(m)
	require.Error(t, err)
}

func TestNewStore_missingType(t *testing.T) {
	m := &Module{
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: []Instruction{{Opcode: OpcodeEnd}}}},
	}
	_, err := NewStore(m)
	require.Error(t, err)
}

func TestFunctionType_Equal(t *testing.T) {
	a := &FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	b := &FunctionType{Params: []api.ValueType{api.ValueTypeI32}}
	c := &FunctionType{Params: []api.ValueType{api.ValueTypeI64}}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
