// Package wasm holds the decoded module representation (the "Module AST")
// and the instantiated Store built from it. The interpreter that executes
// a Store's functions is the separate package interpreter.
package wasm

import "github.com/wasmlet/wasmlet/api"

// Index is a position in one of a module's index spaces (types, functions).
type Index = uint32

// FunctionType is a function signature: the WebAssembly 1.0 "functype".
type FunctionType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Equal reports whether ft and o declare the same parameter and result
// value types, in order.
func (ft *FunctionType) Equal(o *FunctionType) bool {
	if len(ft.Params) != len(o.Params) || len(ft.Results) != len(o.Results) {
		return false
	}
	for i, p := range ft.Params {
		if p != o.Params[i] {
			return false
		}
	}
	for i, r := range ft.Results {
		if r != o.Results[i] {
			return false
		}
	}
	return true
}

// Limits bounds the number of 64KiB pages backing a memory.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

// ImportKind identifies what an import resolves to. Only function imports
// are supported by this core.
type ImportKind byte

const ImportKindFunc ImportKind = 0x00

// ImportDesc describes what is imported; currently always a function.
type ImportDesc struct {
	Kind    ImportKind
	TypeIdx Index
}

// Import is one entry of the import section.
type Import struct {
	Module string
	Field  string
	Desc   ImportDesc
}

// ExportKind identifies what an export resolves to. Only function exports
// are supported by this core.
type ExportKind byte

const ExportKindFunc ExportKind = 0x00

// ExportDesc describes what is exported; currently always a function.
type ExportDesc struct {
	Kind    ExportKind
	FuncIdx Index
}

// Export is one entry of the export section.
type Export struct {
	Name string
	Desc ExportDesc
}

// Data is a data segment: init bytes copied into a memory at instantiation.
type Data struct {
	MemoryIndex Index
	Offset      int32
	Init        []byte
}

// Local is a run of consecutive locals sharing one declared value type, as
// encoded in a function body.
type Local struct {
	Count     uint32
	ValueType api.ValueType
}

// Code is a decoded function body: its local declarations (not yet
// flattened) and its instruction sequence.
type Code struct {
	Locals []Local
	Body   []Instruction
}

// Module is the decoded, immutable module representation produced by the
// binary decoder. Every field but Magic/Version is optional: an absent
// section decodes to a nil slice.
type Module struct {
	Magic   [4]byte
	Version uint32

	TypeSection     []*FunctionType
	ImportSection   []*Import
	FunctionSection []Index // type index per internally defined function
	MemorySection   []Limits
	ExportSection   []*Export
	DataSection     []*Data
	CodeSection     []*Code
}
