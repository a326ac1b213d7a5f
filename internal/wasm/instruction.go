package wasm

import "fmt"

// Opcode is a single instruction byte from the Wasm 1.0 binary format. Only
// the subset needed by this core is enumerated; anything else fails
// decoding.
type Opcode byte

const (
	OpcodeIf        Opcode = 0x04
	OpcodeEnd       Opcode = 0x0b
	OpcodeReturn    Opcode = 0x0f
	OpcodeCall      Opcode = 0x10
	OpcodeLocalGet  Opcode = 0x20
	OpcodeLocalSet  Opcode = 0x21
	OpcodeI32Store  Opcode = 0x36
	OpcodeI32Const  Opcode = 0x41
	OpcodeI32LtS    Opcode = 0x48
	OpcodeI32Add    Opcode = 0x6a
	OpcodeI32Sub    Opcode = 0x6b
)

func (op Opcode) String() string {
	switch op {
	case OpcodeIf:
		return "if"
	case OpcodeEnd:
		return "end"
	case OpcodeReturn:
		return "return"
	case OpcodeCall:
		return "call"
	case OpcodeLocalGet:
		return "local.get"
	case OpcodeLocalSet:
		return "local.set"
	case OpcodeI32Store:
		return "i32.store"
	case OpcodeI32Const:
		return "i32.const"
	case OpcodeI32LtS:
		return "i32.lt_s"
	case OpcodeI32Add:
		return "i32.add"
	case OpcodeI32Sub:
		return "i32.sub"
	default:
		return fmt.Sprintf("opcode(%#x)", byte(op))
	}
}

// BlockType is the result signature of a structured block. This core only
// supports the empty block type (byte 0x40); any other encoding is a
// decode error.
type BlockType struct {
	Empty bool
}

// ResultCount returns the block's arity: the number of values it leaves on
// the stack.
func (b BlockType) ResultCount() int {
	if b.Empty {
		return 0
	}
	return 1
}

// Instruction is a single decoded instruction. Which of the operand fields
// is meaningful depends on Opcode; this mirrors the small, fixed
// instruction set this core supports rather than modeling every Wasm
// instruction as its own Go type.
type Instruction struct {
	Opcode Opcode

	// Index is the operand for Call, LocalGet and LocalSet.
	Index Index

	// I32 is the operand for I32Const.
	I32 int32

	// Align and Offset are the operands for I32Store.
	Align  uint32
	Offset uint32

	// Block is the operand for If.
	Block BlockType
}
