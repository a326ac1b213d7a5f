package wasi_snapshot_preview1

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmlet/wasmlet/api"
	"github.com/wasmlet/wasmlet/internal/wasm"
)

func putU32(b []byte, at uint32, v uint32) {
	binary.LittleEndian.PutUint32(b[at:at+4], v)
}

// TestFdWrite_helloWorld mirrors the "hello_world via WASI" scenario:
// memory holds "Hello, World!\n" at offset 24, and a single iovec at
// offset 16 points to (24, 14).
func TestFdWrite_helloWorld(t *testing.T) {
	mem := make([]byte, wasm.PageSize)
	copy(mem[24:], "Hello, World!\n")
	putU32(mem, 16, 24) // iovec.buf_ptr
	putU32(mem, 20, 14) // iovec.buf_len

	store := &wasm.Store{Memory: &wasm.MemoryInstance{Data: mem}}

	var stdout bytes.Buffer
	snap := New(&stdout, nil)
	fdWrite := snap.HostFuncs()["fd_write"]

	result, err := fdWrite(store, []api.Value{
		api.I32(1),  // fd
		api.I32(16), // iovs_ptr
		api.I32(1),  // iovs_len
		api.I32(32), // nwritten_ptr
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), result.ToI32())
	require.Equal(t, "Hello, World!\n", stdout.String())

	nwritten := binary.LittleEndian.Uint32(mem[32:36])
	require.Equal(t, uint32(14), nwritten)
}

func TestFdWrite_multipleIovecsAccumulateCount(t *testing.T) {
	mem := make([]byte, wasm.PageSize)
	copy(mem[0:], "abc")
	copy(mem[3:], "de")
	putU32(mem, 100, 0)
	putU32(mem, 104, 3)
	putU32(mem, 108, 3)
	putU32(mem, 112, 2)

	store := &wasm.Store{Memory: &wasm.MemoryInstance{Data: mem}}
	var stdout bytes.Buffer
	snap := New(&stdout, nil)
	fdWrite := snap.HostFuncs()["fd_write"]

	_, err := fdWrite(store, []api.Value{api.I32(1), api.I32(100), api.I32(2), api.I32(200)})
	require.NoError(t, err)
	require.Equal(t, "abcde", stdout.String())
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(mem[200:204]))
}

func TestFdWrite_unknownFd(t *testing.T) {
	store := &wasm.Store{Memory: &wasm.MemoryInstance{Data: make([]byte, wasm.PageSize)}}
	snap := New(nil, nil)
	fdWrite := snap.HostFuncs()["fd_write"]

	_, err := fdWrite(store, []api.Value{api.I32(1), api.I32(0), api.I32(0), api.I32(0)})
	require.Error(t, err)
}

func TestFdWrite_outOfBoundsIovec(t *testing.T) {
	store := &wasm.Store{Memory: &wasm.MemoryInstance{Data: make([]byte, 8)}}
	var stdout bytes.Buffer
	snap := New(&stdout, nil)
	fdWrite := snap.HostFuncs()["fd_write"]

	_, err := fdWrite(store, []api.Value{api.I32(1), api.I32(1000), api.I32(1), api.I32(0)})
	require.Error(t, err)
	var te *wasm.TrapError
	require.ErrorAs(t, err, &te)
}

func TestSnapshot_setFdRegistersDescriptor(t *testing.T) {
	store := &wasm.Store{Memory: &wasm.MemoryInstance{Data: make([]byte, wasm.PageSize)}}
	snap := New(nil, nil)
	var buf bytes.Buffer
	snap.SetFd(3, &buf)

	copy(store.Memory.Data[0:], "hi")
	putU32(store.Memory.Data, 8, 0)
	putU32(store.Memory.Data, 12, 2)

	fdWrite := snap.HostFuncs()["fd_write"]
	_, err := fdWrite(store, []api.Value{api.I32(3), api.I32(8), api.I32(1), api.I32(16)})
	require.NoError(t, err)
	require.Equal(t, "hi", buf.String())
}
