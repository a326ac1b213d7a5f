// Package wasmlet is a miniature WebAssembly runtime: it decodes a Wasm
// 1.0 binary module, instantiates it into a Store, and executes exported
// functions against host-provided imports, including a minimal WASI
// fd_write shim for "Hello, World!"-class guest programs.
//
// # Memory
//
// A Runtime's guest owns at most one linear memory. Host functions
// registered with AddImport receive the Store for the duration of a
// single call, so they can read or write that memory; they must not
// retain the Store past the call.
package wasmlet

import (
	"fmt"

	"github.com/wasmlet/wasmlet/api"
	"github.com/wasmlet/wasmlet/internal/wasm"
	"github.com/wasmlet/wasmlet/internal/wasm/binary"
	"github.com/wasmlet/wasmlet/internal/wasm/interpreter"
)

// HostFunction is a host-registered import. It receives the Store so it
// can bridge to guest linear memory, and returns at most one result.
type HostFunction = interpreter.HostFunc

// Runtime holds an instantiated Store, an import registry, and the
// interpreter that executes calls against them.
//
// A Runtime is not safe for concurrent use: Call runs to completion
// before returning, and there is no suspension point visible to the
// caller other than blocking I/O performed by a host import.
type Runtime struct {
	store   *wasm.Store
	in      *interpreter.Interp
	imports map[string]map[string]HostFunction
}

// Instantiate decodes a Wasm binary image and builds a Runtime with no
// registered imports. Use AddImport before calling any export that
// references a host function.
func Instantiate(image []byte) (*Runtime, error) {
	m, err := binary.DecodeModule(image)
	if err != nil {
		return nil, err
	}
	store, err := wasm.NewStore(m)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		store:   store,
		imports: make(map[string]map[string]HostFunction),
	}
	r.in = interpreter.New(store, r)
	return r, nil
}

// InstantiateWithWASI decodes and instantiates image like Instantiate,
// then registers wasi's exported functions under the
// wasi_snapshot_preview1 module name.
func InstantiateWithWASI(image []byte, wasi WASISnapshot) (*Runtime, error) {
	r, err := Instantiate(image)
	if err != nil {
		return nil, err
	}
	for field, fn := range wasi.HostFuncs() {
		r.AddImport(wasiModuleName, field, fn)
	}
	return r, nil
}

// WASISnapshot is satisfied by imports/wasi_snapshot_preview1.Snapshot.
// It's named here, rather than imported directly, so this package
// doesn't force every caller of Instantiate to pull in the WASI shim.
type WASISnapshot interface {
	HostFuncs() map[string]HostFunction
}

const wasiModuleName = "wasi_snapshot_preview1"

// AddImport registers a host function under (module, field). Lookups
// happen at call time, not at link time, so registering an import after
// Instantiate still takes effect for any Call made afterward.
func (r *Runtime) AddImport(module, field string, fn HostFunction) {
	fields, ok := r.imports[module]
	if !ok {
		fields = make(map[string]HostFunction)
		r.imports[module] = fields
	}
	fields[field] = fn
}

// Lookup implements interpreter.Imports.
func (r *Runtime) Lookup(module, field string) (interpreter.HostFunc, bool) {
	fields, ok := r.imports[module]
	if !ok {
		return nil, false
	}
	fn, ok := fields[field]
	return fn, ok
}

// Call looks up name in the module's exports, pushes args left-to-right
// onto the operand stack, and runs the corresponding function to
// completion. A nil result means the function has no return value, not
// that the call failed.
func (r *Runtime) Call(name string, args ...api.Value) (*api.Value, error) {
	export, ok := r.store.Module.Exports[name]
	if !ok {
		return nil, &wasm.LinkError{Msg: fmt.Sprintf("unknown export %q", name)}
	}
	return r.in.Call(export.Desc.FuncIdx, args)
}
