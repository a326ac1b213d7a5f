// Package binary decodes the Wasm 1.0 binary module format into
// *wasm.Module. Decoding is a pure function of the input bytes: it has no
// I/O side effects and never mutates its argument.
package binary

import (
	"fmt"
	"unicode/utf8"

	"github.com/wasmlet/wasmlet/api"
	"github.com/wasmlet/wasmlet/internal/leb128"
	"github.com/wasmlet/wasmlet/internal/wasm"
)

var magic = [4]byte{0x00, 'a', 's', 'm'}

// section ids, per the Wasm 1.0 binary format.
const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11
)

// DecodeModule parses a complete Wasm binary image into a Module. It
// requires the magic header and version, then walks the section list,
// decoding every section this core recognizes and skipping Custom
// sections. Sections this core doesn't model (Table, Global, Start,
// Element) are rejected, since this core provides no way to act on them.
func DecodeModule(data []byte) (*wasm.Module, error) {
	r := &reader{buf: data}

	var gotMagic [4]byte
	if err := r.readExact(gotMagic[:]); err != nil {
		return nil, r.errorf("unexpected EOF reading magic")
	}
	if gotMagic != magic {
		return nil, r.errAt(0, "invalid magic header, not a wasm module")
	}

	version, err := r.readU32LE()
	if err != nil {
		return nil, err
	}

	m := &wasm.Module{Magic: magic, Version: version}

	for !r.atEnd() {
		idPos := r.pos
		id, err := r.readByte()
		if err != nil {
			return nil, err
		}
		size, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		body, err := r.readN(int(size))
		if err != nil {
			return nil, err
		}
		sr := &reader{buf: body}

		switch id {
		case sectionCustom:
			// skipped: name + opaque payload, no semantic effect on this core.
		case sectionType:
			if m.TypeSection, err = decodeTypeSection(sr); err != nil {
				return nil, err
			}
		case sectionImport:
			if m.ImportSection, err = decodeImportSection(sr); err != nil {
				return nil, err
			}
		case sectionFunction:
			if m.FunctionSection, err = decodeFunctionSection(sr); err != nil {
				return nil, err
			}
		case sectionMemory:
			if m.MemorySection, err = decodeMemorySection(sr); err != nil {
				return nil, err
			}
		case sectionExport:
			if m.ExportSection, err = decodeExportSection(sr); err != nil {
				return nil, err
			}
		case sectionData:
			if m.DataSection, err = decodeDataSection(sr); err != nil {
				return nil, err
			}
		case sectionCode:
			if m.CodeSection, err = decodeCodeSection(sr); err != nil {
				return nil, err
			}
		default:
			return nil, r.errAt(idPos, "unsupported section id")
		}
	}

	return m, nil
}

func decodeTypeSection(r *reader) ([]*wasm.FunctionType, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	types := make([]*wasm.FunctionType, 0, count)
	for i := uint32(0); i < count; i++ {
		tag, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if tag != 0x60 {
			return nil, r.errAt(r.pos-1, "expected functype tag 0x60")
		}
		params, err := readValueTypes(r)
		if err != nil {
			return nil, err
		}
		results, err := readValueTypes(r)
		if err != nil {
			return nil, err
		}
		types = append(types, &wasm.FunctionType{Params: params, Results: results})
	}
	return types, nil
}

func readValueTypes(r *reader) ([]api.ValueType, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]api.ValueType, count)
	for i := range out {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func decodeImportSection(r *reader) ([]*wasm.Import, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	imports := make([]*wasm.Import, 0, count)
	for i := uint32(0); i < count; i++ {
		module, err := readName(r)
		if err != nil {
			return nil, err
		}
		field, err := readName(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if wasm.ImportKind(kind) != wasm.ImportKindFunc {
			return nil, r.errAt(r.pos-1, "unsupported import kind")
		}
		typeIdx, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		imports = append(imports, &wasm.Import{
			Module: module,
			Field:  field,
			Desc:   wasm.ImportDesc{Kind: wasm.ImportKindFunc, TypeIdx: typeIdx},
		})
	}
	return imports, nil
}

func decodeFunctionSection(r *reader) ([]wasm.Index, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	idxs := make([]wasm.Index, count)
	for i := range idxs {
		idx, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}

func decodeMemorySection(r *reader) ([]wasm.Limits, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	mems := make([]wasm.Limits, 0, count)
	for i := uint32(0); i < count; i++ {
		limits, err := decodeLimits(r)
		if err != nil {
			return nil, err
		}
		mems = append(mems, limits)
	}
	return mems, nil
}

func decodeLimits(r *reader) (wasm.Limits, error) {
	flag, err := r.readVaruint32()
	if err != nil {
		return wasm.Limits{}, err
	}
	min, err := r.readVaruint32()
	if err != nil {
		return wasm.Limits{}, err
	}
	if flag == 0 {
		return wasm.Limits{Min: min}, nil
	}
	max, err := r.readVaruint32()
	if err != nil {
		return wasm.Limits{}, err
	}
	return wasm.Limits{Min: min, Max: &max}, nil
}

func decodeExportSection(r *reader) ([]*wasm.Export, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	exports := make([]*wasm.Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if wasm.ExportKind(kind) != wasm.ExportKindFunc {
			return nil, r.errAt(r.pos-1, "unsupported export kind")
		}
		idx, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		exports = append(exports, &wasm.Export{
			Name: name,
			Desc: wasm.ExportDesc{Kind: wasm.ExportKindFunc, FuncIdx: idx},
		})
	}
	return exports, nil
}

// decodeConstExpr reads a constant initializer expression: i32.const k
// followed by end. Only this form is accepted; the terminating End opcode
// is consumed but, matching the permissive behavior of the source this
// core is based on, not separately validated.
func decodeConstExpr(r *reader) (int32, error) {
	op, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if wasm.Opcode(op) != wasm.OpcodeI32Const {
		return 0, r.errAt(r.pos-1, "unsupported constant expression")
	}
	k, err := r.readVarint32()
	if err != nil {
		return 0, err
	}
	if _, err := r.readByte(); err != nil { // end
		return 0, err
	}
	return k, nil
}

func decodeDataSection(r *reader) ([]*wasm.Data, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	segs := make([]*wasm.Data, 0, count)
	for i := uint32(0); i < count; i++ {
		memIdx, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return nil, err
		}
		size, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		init, err := r.readN(int(size))
		if err != nil {
			return nil, err
		}
		segs = append(segs, &wasm.Data{
			MemoryIndex: memIdx,
			Offset:      offset,
			Init:        append([]byte(nil), init...),
		})
	}
	return segs, nil
}

func decodeCodeSection(r *reader) ([]*wasm.Code, error) {
	count, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	codes := make([]*wasm.Code, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		body, err := r.readN(int(size))
		if err != nil {
			return nil, err
		}
		code, err := decodeFunctionBody(&reader{buf: body})
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func decodeFunctionBody(r *reader) (*wasm.Code, error) {
	localCount, err := r.readVaruint32()
	if err != nil {
		return nil, err
	}
	locals := make([]wasm.Local, 0, localCount)
	for i := uint32(0); i < localCount; i++ {
		count, err := r.readVaruint32()
		if err != nil {
			return nil, err
		}
		vt, err := r.readByte()
		if err != nil {
			return nil, err
		}
		locals = append(locals, wasm.Local{Count: count, ValueType: vt})
	}

	var insts []wasm.Instruction
	for !r.atEnd() {
		inst, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}

	return &wasm.Code{Locals: locals, Body: insts}, nil
}

func decodeInstruction(r *reader) (wasm.Instruction, error) {
	b, err := r.readByte()
	if err != nil {
		return wasm.Instruction{}, err
	}
	op := wasm.Opcode(b)

	switch op {
	case wasm.OpcodeEnd, wasm.OpcodeReturn, wasm.OpcodeI32LtS, wasm.OpcodeI32Add, wasm.OpcodeI32Sub:
		return wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeIf:
		bt, err := r.readByte()
		if err != nil {
			return wasm.Instruction{}, err
		}
		if bt != 0x40 {
			return wasm.Instruction{}, r.errAt(r.pos-1, "unsupported block type: only empty blocks are supported")
		}
		return wasm.Instruction{Opcode: op, Block: wasm.BlockType{Empty: true}}, nil

	case wasm.OpcodeCall, wasm.OpcodeLocalGet, wasm.OpcodeLocalSet:
		idx, err := r.readVaruint32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Index: idx}, nil

	case wasm.OpcodeI32Const:
		v, err := r.readVarint32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, I32: v}, nil

	case wasm.OpcodeI32Store:
		align, err := r.readVaruint32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		offset, err := r.readVaruint32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Align: align, Offset: offset}, nil

	default:
		return wasm.Instruction{}, r.errAt(r.pos-1, "unsupported opcode")
	}
}

func readName(r *reader) (string, error) {
	size, err := r.readVaruint32()
	if err != nil {
		return "", err
	}
	raw, err := r.readN(int(size))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return string([]rune(string(raw))), nil // lossy replacement of ill-formed bytes
	}
	return string(raw), nil
}

// reader is a forward-only cursor over a byte slice, used by every section
// decoder. It never looks past the slice it was constructed with, so a
// section decoder cannot read into the next section's bytes.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEnd() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, r.errorf("unexpected EOF")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, r.errorf("unexpected EOF reading %d bytes", n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readExact(dst []byte) error {
	b, err := r.readN(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (r *reader) readU32LE() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *reader) readVaruint32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.buf[r.pos:])
	if err != nil {
		return 0, r.errorf("%s", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readVarint32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.buf[r.pos:])
	if err != nil {
		return 0, r.errorf("%s", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) errorf(format string, args ...interface{}) error {
	return r.errAt(r.pos, fmt.Sprintf(format, args...))
}

func (r *reader) errAt(pos int, msg string) error {
	return &wasm.DecodeError{Pos: pos, Msg: msg}
}
