package wasm

import "github.com/wasmlet/wasmlet/api"

// PageSize is the fixed size, in bytes, of one unit of linear memory
// growth.
const PageSize = 65536

// FuncInst is one entry of a Store's combined function index space.
// Exactly one of Internal or External is set.
type FuncInst struct {
	Type *FunctionType

	// Internal is set for a function defined in the module's own code
	// section.
	Internal *InternalFunc

	// External is set for an imported function, resolved by host name at
	// call time rather than linked eagerly.
	External *ExternalFunc
}

// InternalFunc is a function defined in the module being instantiated.
type InternalFunc struct {
	Locals []api.ValueType // flattened: one entry per local, in declaration order
	Body   []Instruction
}

// ExternalFunc names a host import; it is resolved against the Runtime's
// import registry each time it is called, not at instantiation.
type ExternalFunc struct {
	Module string
	Field  string
}

// MemoryInstance is the single linear memory this core supports.
type MemoryInstance struct {
	Data []byte
	Max  *uint32 // in pages, nil means unbounded
}

// ModuleInstance holds the instantiated module's export table.
type ModuleInstance struct {
	Exports map[string]*Export
}

// Store is the executable image produced by instantiating a Module: its
// resolved function list, at most one linear memory, and an export lookup
// table. A Wasm function index names a position in Funcs.
type Store struct {
	Funcs   []*FuncInst
	Memory  *MemoryInstance // nil if the module declares no memory
	Module  *ModuleInstance
}

// NewStore builds a Store from a decoded Module. It performs every step of
// instantiation (§4.2): resolving the function index space, installing
// exports, allocating linear memory, and copying in data segments. It
// never mutates m.
func NewStore(m *Module) (*Store, error) {
	funcs, err := buildFuncs(m)
	if err != nil {
		return nil, err
	}

	exports := make(map[string]*Export, len(m.ExportSection))
	for _, e := range m.ExportSection {
		exports[e.Name] = e // last-write-wins on duplicate names
	}

	s := &Store{
		Funcs:  funcs,
		Module: &ModuleInstance{Exports: exports},
	}

	if len(m.MemorySection) > 0 {
		limit := m.MemorySection[0]
		s.Memory = &MemoryInstance{
			Data: make([]byte, uint64(limit.Min)*PageSize),
			Max:  limit.Max,
		}
	}

	for _, d := range m.DataSection {
		if s.Memory == nil {
			return nil, &InstantiationError{Msg: "data segment present but no memory declared"}
		}
		start := int64(d.Offset)
		end := start + int64(len(d.Init))
		if start < 0 || end > int64(len(s.Memory.Data)) {
			return nil, &InstantiationError{Msg: "data too large"}
		}
		copy(s.Memory.Data[start:end], d.Init)
	}

	return s, nil
}

// buildFuncs resolves the combined function index space: all imports in
// import order, then all internally defined functions in code-section
// order.
func buildFuncs(m *Module) ([]*FuncInst, error) {
	var funcs []*FuncInst

	for _, imp := range m.ImportSection {
		if imp.Desc.Kind != ImportKindFunc {
			return nil, &InstantiationError{Msg: "only function imports are supported"}
		}
		ft, err := resolveType(m, imp.Desc.TypeIdx)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, &FuncInst{
			Type:     ft,
			External: &ExternalFunc{Module: imp.Module, Field: imp.Field},
		})
	}

	if len(m.CodeSection) != len(m.FunctionSection) {
		return nil, &InstantiationError{Msg: "function and code section lengths disagree"}
	}

	for i, code := range m.CodeSection {
		ft, err := resolveType(m, m.FunctionSection[i])
		if err != nil {
			return nil, err
		}

		var locals []api.ValueType
		for _, l := range code.Locals {
			for n := uint32(0); n < l.Count; n++ {
				locals = append(locals, l.ValueType)
			}
		}

		funcs = append(funcs, &FuncInst{
			Type:     ft,
			Internal: &InternalFunc{Locals: locals, Body: code.Body},
		})
	}

	return funcs, nil
}

func resolveType(m *Module, idx Index) (*FunctionType, error) {
	if int(idx) >= len(m.TypeSection) {
		return nil, &InstantiationError{Msg: "type index out of range"}
	}
	return m.TypeSection[idx], nil
}
