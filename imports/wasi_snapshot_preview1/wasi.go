// Package wasi_snapshot_preview1 is a minimal WASI shim: it provides only
// fd_write, enough to run "Hello, World!"-class guest programs that write
// to stdout or stderr.
package wasi_snapshot_preview1

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wasmlet/wasmlet/api"
	"github.com/wasmlet/wasmlet/internal/wasm"
	"github.com/wasmlet/wasmlet/internal/wasm/interpreter"
)

// ModuleName is the import module name guest code uses to reach this
// shim.
const ModuleName = "wasi_snapshot_preview1"

// Snapshot is a registered set of host file descriptors. Descriptors
// 1 and 2 are populated at construction from New's arguments;
// descriptor 0 is not registered. Callers may register additional ones
// with SetFd. Snapshot never closes a descriptor it was
// given: its lifecycle is tied to whoever opened it, not to the Runtime.
type Snapshot struct {
	fds map[int32]io.Writer
}

// New builds a Snapshot with stdout and stderr wired to the given
// writers. Passing nil for either leaves that descriptor unregistered,
// so fd_write to it fails with an unknown-descriptor error.
func New(stdout, stderr io.Writer) *Snapshot {
	s := &Snapshot{fds: make(map[int32]io.Writer, 3)}
	if stdout != nil {
		s.fds[1] = stdout
	}
	if stderr != nil {
		s.fds[2] = stderr
	}
	return s
}

// SetFd registers or replaces the writer backing a file descriptor.
func (s *Snapshot) SetFd(fd int32, w io.Writer) {
	s.fds[fd] = w
}

// HostFuncs returns the module's exported host functions, keyed by
// field name, ready to be registered into a Runtime's import registry
// under ModuleName.
func (s *Snapshot) HostFuncs() map[string]interpreter.HostFunc {
	return map[string]interpreter.HostFunc{
		"fd_write": s.fdWrite,
	}
}

// fdWrite implements fd_write(fd, iovs_ptr, iovs_len, nwritten_ptr) i32.
// For each of iovs_len iovec records at iovs_ptr (two little-endian i32
// fields: buf_ptr, buf_len), it writes memory[buf_ptr:buf_ptr+buf_len]
// to the writer registered for fd, accumulates the total bytes written,
// stores that total little-endian at nwritten_ptr, and returns I32(0).
func (s *Snapshot) fdWrite(store *wasm.Store, args []api.Value) (*api.Value, error) {
	fd := args[0].ToI32()
	iovsPtr := uint32(args[1].ToI32())
	iovsLen := uint32(args[2].ToI32())
	nwrittenPtr := uint32(args[3].ToI32())

	w, ok := s.fds[fd]
	if !ok {
		return nil, &wasm.HostError{Err: errUnknownFd(fd)}
	}
	mem := store.Memory
	if mem == nil {
		return nil, &wasm.TrapError{Msg: "fd_write with no memory declared"}
	}

	var nwritten uint32
	for i := uint32(0); i < iovsLen; i++ {
		rec := iovsPtr + i*8
		bufPtr, err := readU32(mem.Data, rec)
		if err != nil {
			return nil, err
		}
		bufLen, err := readU32(mem.Data, rec+4)
		if err != nil {
			return nil, err
		}

		b, err := slice(mem.Data, bufPtr, bufLen)
		if err != nil {
			return nil, err
		}
		n, err := w.Write(b)
		if err != nil {
			return nil, &wasm.HostError{Err: err}
		}
		nwritten += uint32(n)
	}

	if err := writeU32(mem.Data, nwrittenPtr, nwritten); err != nil {
		return nil, err
	}
	result := api.I32(0)
	return &result, nil
}

func readU32(data []byte, at uint32) (uint32, error) {
	b, err := slice(data, at, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func writeU32(data []byte, at uint32, v uint32) error {
	b, err := slice(data, at, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func slice(data []byte, at, length uint32) ([]byte, error) {
	end := uint64(at) + uint64(length)
	if end > uint64(len(data)) {
		return nil, &wasm.TrapError{Msg: "wasi: memory access out of bounds"}
	}
	return data[at:end], nil
}

type errUnknownFd int32

func (fd errUnknownFd) Error() string {
	return fmt.Sprintf("wasi: unknown file descriptor %d", int32(fd))
}
