package wasm

import "fmt"

// DecodeError reports a malformed module image: bad magic, a truncated
// section, an unrecognized opcode, an unsupported block type, or a LEB128
// encoding that overflows its target width.
type DecodeError struct {
	// Pos is the byte offset where decoding failed. For the header and the
	// section framing (id and size) it is an offset into the module image;
	// inside a section it counts from the start of that section's body, and
	// inside a function body from the start of that body.
	Pos int
	Msg string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wasm: decode error at byte %d: %s", e.Pos, e.Msg)
}

// InstantiationError reports a problem building a Store from an otherwise
// well-formed Module: a dangling type index, or a data segment that
// doesn't fit in memory.
type InstantiationError struct {
	Msg string
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("wasm: instantiation error: %s", e.Msg)
}

// LinkError reports a reference to a function that isn't resolvable at
// call time: an unknown export, or an external function whose (module,
// field) has no registered host callable.
type LinkError struct {
	Msg string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("wasm: link error: %s", e.Msg)
}

// TrapError reports a fault raised by the interpreter while executing an
// instruction: stack underflow, an out-of-range local or function index, a
// memory access outside the bounds of linear memory, or a missing End for
// an open If.
type TrapError struct {
	Msg string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("wasm: trap: %s", e.Msg)
}

// HostError wraps an error returned by a registered host callable,
// including the WASI shim.
type HostError struct {
	Err error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("wasm: host function error: %s", e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}
