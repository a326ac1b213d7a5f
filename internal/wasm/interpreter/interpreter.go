// Package interpreter executes a Store's functions: it holds the operand
// stack and an explicit call stack of activation frames, dispatches the
// supported instruction set, and hands External calls off to a host
// import registry.
package interpreter

import (
	"encoding/binary"

	"github.com/wasmlet/wasmlet/api"
	"github.com/wasmlet/wasmlet/internal/wasm"
)

// HostFunc is a host-registered import. It receives the store so it can
// read or write guest linear memory, which is how the WASI shim bridges
// fd_write to host file descriptors.
type HostFunc func(*wasm.Store, []api.Value) (*api.Value, error)

// Imports resolves a (module, field) pair to a host callable. Lookups
// happen at call time rather than at link time, so registrations added
// after instantiation take effect.
type Imports interface {
	Lookup(module, field string) (HostFunc, bool)
}

// Label marks a structured block entered by If and popped by its
// matching End.
type Label struct {
	PC    int
	SP    int
	Arity int
}

// Frame is the activation record for one internal function invocation.
// PC starts at -1 so the fetch/execute loop's pre-increment lands on
// instruction 0.
type Frame struct {
	PC     int
	SP     int
	Insts  []wasm.Instruction
	Arity  int
	Locals []api.Value
	Labels []Label
}

// Interp runs the fetch/execute loop over a Store. It is not safe for
// concurrent use; a Runtime drives a single Interp and adds no locking of
// its own.
type Interp struct {
	store   *wasm.Store
	imports Imports
	stack   []api.Value
	frames  []*Frame
}

// New builds an Interp over store, resolving External calls through
// imports.
func New(store *wasm.Store, imports Imports) *Interp {
	return &Interp{store: store, imports: imports}
}

// Call invokes the function at idx with args pushed left-to-right, and
// returns its single result, if any. Any error clears the operand and
// call stacks before returning, so failed state never leaks into the
// next Call.
func (in *Interp) Call(idx wasm.Index, args []api.Value) (*api.Value, error) {
	if int(idx) >= len(in.store.Funcs) {
		return nil, &wasm.TrapError{Msg: "function index out of range"}
	}
	in.stack = append(in.stack, args...)

	result, err := in.invoke(idx)
	if err != nil {
		in.stack = in.stack[:0]
		in.frames = in.frames[:0]
		return nil, err
	}
	return result, nil
}

func (in *Interp) invoke(idx wasm.Index) (*api.Value, error) {
	fn := in.store.Funcs[idx]
	if fn.External != nil {
		return in.callExternal(fn)
	}
	if err := in.pushFrame(fn); err != nil {
		return nil, err
	}
	return in.execute()
}

// execute runs the fetch/execute loop until the call stack empties, then
// returns whatever single value (if any) the outermost frame left on the
// operand stack.
func (in *Interp) execute() (*api.Value, error) {
	for len(in.frames) > 0 {
		frame := in.frames[len(in.frames)-1]
		frame.PC++

		if frame.PC >= len(frame.Insts) {
			in.frames = in.frames[:len(in.frames)-1]
			if err := in.unwind(frame.SP, frame.Arity); err != nil {
				return nil, err
			}
			continue
		}

		if err := in.step(frame, frame.Insts[frame.PC]); err != nil {
			return nil, err
		}
	}

	if len(in.stack) == 0 {
		return nil, nil
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return &v, nil
}

func (in *Interp) step(frame *Frame, inst wasm.Instruction) error {
	switch inst.Opcode {
	case wasm.OpcodeLocalGet:
		if int(inst.Index) >= len(frame.Locals) {
			return &wasm.TrapError{Msg: "local index out of range"}
		}
		in.push(frame.Locals[inst.Index])

	case wasm.OpcodeLocalSet:
		v, err := in.pop()
		if err != nil {
			return err
		}
		if int(inst.Index) >= len(frame.Locals) {
			return &wasm.TrapError{Msg: "local index out of range"}
		}
		frame.Locals[inst.Index] = v

	case wasm.OpcodeI32Const:
		in.push(api.I32(inst.I32))

	case wasm.OpcodeI32Add:
		right, left, err := in.pop2()
		if err != nil {
			return err
		}
		in.push(api.I32(left.ToI32() + right.ToI32()))

	case wasm.OpcodeI32Sub:
		right, left, err := in.pop2()
		if err != nil {
			return err
		}
		in.push(api.I32(left.ToI32() - right.ToI32()))

	case wasm.OpcodeI32LtS:
		right, left, err := in.pop2()
		if err != nil {
			return err
		}
		if left.ToI32() < right.ToI32() {
			in.push(api.I32(1))
		} else {
			in.push(api.I32(0))
		}

	case wasm.OpcodeI32Store:
		value, err := in.pop()
		if err != nil {
			return err
		}
		addr, err := in.pop()
		if err != nil {
			return err
		}
		return in.storeI32(addr.ToI32(), inst.Offset, value.ToI32())

	case wasm.OpcodeCall:
		return in.call(inst.Index)

	case wasm.OpcodeIf:
		return in.doIf(frame, inst)

	case wasm.OpcodeEnd:
		if n := len(frame.Labels); n > 0 {
			label := frame.Labels[n-1]
			frame.Labels = frame.Labels[:n-1]
			return in.unwind(label.SP, label.Arity)
		}
		in.frames = in.frames[:len(in.frames)-1]
		return in.unwind(frame.SP, frame.Arity)

	case wasm.OpcodeReturn:
		in.frames = in.frames[:len(in.frames)-1]
		return in.unwind(frame.SP, frame.Arity)

	default:
		return &wasm.TrapError{Msg: "unsupported opcode " + inst.Opcode.String()}
	}
	return nil
}

// doIf pops the condition, jumping pc straight to the matching End when
// it's zero so the then-branch is never fetched, and pushes a label for
// the matching End to pop. The label always records the If's own
// position and the stack depth as of entry; which path was taken has no
// further bearing once the label is in place, since the loop's
// pre-increment naturally lands one past whichever End is reached.
func (in *Interp) doIf(frame *Frame, inst wasm.Instruction) error {
	cond, err := in.pop()
	if err != nil {
		return err
	}
	label := Label{PC: frame.PC, SP: len(in.stack), Arity: inst.Block.ResultCount()}
	if cond.ToI32() == 0 {
		end, err := getEndAddress(frame.Insts, frame.PC)
		if err != nil {
			return err
		}
		// Land one instruction before the matching End so the loop's
		// pre-increment fetches the End itself, which pops this label.
		frame.PC = end - 1
	}
	frame.Labels = append(frame.Labels, label)
	return nil
}

// getEndAddress scans forward from pc+1 for the End matching the If at
// pc, treating nested Ifs as increasing a depth counter.
func getEndAddress(insts []wasm.Instruction, pc int) (int, error) {
	depth := 0
	for i := pc + 1; i < len(insts); i++ {
		switch insts[i].Opcode {
		case wasm.OpcodeIf:
			depth++
		case wasm.OpcodeEnd:
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, &wasm.TrapError{Msg: "missing end for open if"}
}

func (in *Interp) call(idx wasm.Index) error {
	if int(idx) >= len(in.store.Funcs) {
		return &wasm.TrapError{Msg: "function index out of range"}
	}
	fn := in.store.Funcs[idx]
	if fn.External != nil {
		_, err := in.callExternal(fn)
		return err
	}
	return in.pushFrame(fn)
}

func (in *Interp) callExternal(fn *wasm.FuncInst) (*api.Value, error) {
	n := len(fn.Type.Params)
	if len(in.stack) < n {
		return nil, &wasm.TrapError{Msg: "operand stack underflow"}
	}
	args := append([]api.Value(nil), in.stack[len(in.stack)-n:]...)
	in.stack = in.stack[:len(in.stack)-n]

	host, ok := in.imports.Lookup(fn.External.Module, fn.External.Field)
	if !ok {
		return nil, &wasm.LinkError{Msg: "unresolved import " + fn.External.Module + "." + fn.External.Field}
	}

	result, err := host(in.store, args)
	if err != nil {
		return nil, &wasm.HostError{Err: err}
	}
	if result != nil {
		in.push(*result)
	}
	return result, nil
}

// pushFrame splits the top len(params) operand-stack values into
// locals[0..n], appends zero-initialized locals for the function's
// declared locals, and pushes the new frame.
func (in *Interp) pushFrame(fn *wasm.FuncInst) error {
	n := len(fn.Type.Params)
	if len(in.stack) < n {
		return &wasm.TrapError{Msg: "operand stack underflow"}
	}

	locals := make([]api.Value, 0, n+len(fn.Internal.Locals))
	locals = append(locals, in.stack[len(in.stack)-n:]...)
	for _, t := range fn.Internal.Locals {
		locals = append(locals, api.ZeroValue(t))
	}
	in.stack = in.stack[:len(in.stack)-n]

	in.frames = append(in.frames, &Frame{
		PC:     -1,
		SP:     len(in.stack),
		Insts:  fn.Internal.Body,
		Arity:  len(fn.Type.Results),
		Locals: locals,
	})
	return nil
}

// unwind discards every operand-stack slot above sp, keeping the top
// value if arity is non-zero.
func (in *Interp) unwind(sp, arity int) error {
	if arity > 0 {
		if len(in.stack) <= sp {
			return &wasm.TrapError{Msg: "operand stack underflow"}
		}
		result := in.stack[len(in.stack)-1]
		in.stack = append(in.stack[:sp], result)
	} else {
		in.stack = in.stack[:sp]
	}
	return nil
}

func (in *Interp) push(v api.Value) {
	in.stack = append(in.stack, v)
}

func (in *Interp) pop() (api.Value, error) {
	if len(in.stack) == 0 {
		return api.Value{}, &wasm.TrapError{Msg: "operand stack underflow"}
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

// pop2 pops the two operands of a binary instruction, returning them as
// (right, left) in the order spec'd for I32Add/I32Sub/I32LtS: the value
// pushed last (the top of stack) is the right-hand operand.
func (in *Interp) pop2() (right, left api.Value, err error) {
	right, err = in.pop()
	if err != nil {
		return
	}
	left, err = in.pop()
	return
}

func (in *Interp) storeI32(addr int32, offset uint32, value int32) error {
	mem := in.store.Memory
	if mem == nil {
		return &wasm.TrapError{Msg: "i32.store with no memory declared"}
	}
	at := int64(uint32(addr)) + int64(offset)
	end := at + 4
	if at < 0 || end > int64(len(mem.Data)) {
		return &wasm.TrapError{Msg: "memory store out of bounds"}
	}
	binary.LittleEndian.PutUint32(mem.Data[at:end], uint32(value))
	return nil
}
