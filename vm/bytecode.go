package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP  Opcode = 0x00 // no operation
	OpHALT Opcode = 0x01 // end the thread
)

// Pushes
const (
	OpPushConst Opcode = 0x10 // push constant-pool value (16-bit index)
	OpPushImm8  Opcode = 0x11 // push 8-bit immediate
	OpPushImm16 Opcode = 0x12 // push 16-bit immediate
	OpPushFlag  Opcode = 0x13 // push flag bit as 0/1 (16-bit flag id)
	OpPushVar   Opcode = 0x14 // push variable cell (16-bit index)
	OpDup       Opcode = 0x15 // duplicate top of stack
	OpPop       Opcode = 0x16 // discard top of stack
	OpSwap      Opcode = 0x17 // exchange the two topmost values
)

// Stores
const (
	OpStoreFlag Opcode = 0x20 // pop, store truthiness into flag (16-bit flag id)
	OpStoreVar  Opcode = 0x21 // pop, store into variable (16-bit index)
	OpIncVar    Opcode = 0x22 // increment variable, wrapping u16 (16-bit index)
	OpDecVar    Opcode = 0x23 // decrement variable, wrapping u16 (16-bit index)
)

// Arithmetic. Typed by operand width: results wrap modulo 2^8 or 2^16,
// matching what scripts observed on the original hardware. Bitwise ops
// and shifts work on the 16-bit width.
const (
	OpAdd8  Opcode = 0x30
	OpAdd16 Opcode = 0x31
	OpSub8  Opcode = 0x32
	OpSub16 Opcode = 0x33
	OpMul8  Opcode = 0x34
	OpMul16 Opcode = 0x35
	OpDiv8  Opcode = 0x36 // divisor 0 faults
	OpDiv16 Opcode = 0x37
	OpMod8  Opcode = 0x38 // divisor 0 faults
	OpMod16 Opcode = 0x39
	OpAnd   Opcode = 0x3A
	OpOr    Opcode = 0x3B
	OpXor   Opcode = 0x3C
	OpShl   Opcode = 0x3D
	OpShr   Opcode = 0x3E
)

// Comparisons: pop two, push 0 or 1. Unsigned within the 16-bit width;
// 8-bit values arrive already wrapped so one set serves both widths.
const (
	OpCmpEQ Opcode = 0x40
	OpCmpNE Opcode = 0x41
	OpCmpLT Opcode = 0x42
	OpCmpLE Opcode = 0x43
	OpCmpGT Opcode = 0x44
	OpCmpGE Opcode = 0x45
)

// Control Flow
const (
	OpJump      Opcode = 0x50 // unconditional jump (16-bit signed offset)
	OpJumpTrue  Opcode = 0x51 // pop, jump if nonzero (16-bit signed offset)
	OpJumpFalse Opcode = 0x52 // pop, jump if zero (16-bit signed offset)
	OpCall      Opcode = 0x53 // call entry point (16-bit entry id)
	OpReturn    Opcode = 0x54 // return to caller, or end the thread at frame 0
)

// Threading
const (
	OpWaitFrames Opcode = 0x60 // suspend for N ticks (8-bit count)
	OpWaitAnim   Opcode = 0x61 // suspend until entity's animation ends (8-bit entity)
	OpWaitInput  Opcode = 0x62 // suspend until input matching mask (8-bit mask)
	OpWaitThread Opcode = 0x63 // pop thread id, suspend until it ends
	OpSpawn      Opcode = 0x64 // start entry as a sub-thread next tick, push its id (16-bit entry id)
	OpTerminate  Opcode = 0x65 // end the thread immediately, unwinding all frames
)

// Native Calls
const (
	OpNative Opcode = 0x70 // host call (16-bit id, 8-bit argc): pops argc args, pushes result
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	StackEffect  int    // net effect on stack (-1 = variable for NATIVE)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP:  {"NOP", 0, 0},
	OpHALT: {"HALT", 0, 0},

	// Pushes
	OpPushConst: {"PUSH_CONST", 2, 1},
	OpPushImm8:  {"PUSH_IMM8", 1, 1},
	OpPushImm16: {"PUSH_IMM16", 2, 1},
	OpPushFlag:  {"PUSH_FLAG", 2, 1},
	OpPushVar:   {"PUSH_VAR", 2, 1},
	OpDup:       {"DUP", 0, 1},
	OpPop:       {"POP", 0, -1},
	OpSwap:      {"SWAP", 0, 0},

	// Stores
	OpStoreFlag: {"STORE_FLAG", 2, -1},
	OpStoreVar:  {"STORE_VAR", 2, -1},
	OpIncVar:    {"INC_VAR", 2, 0},
	OpDecVar:    {"DEC_VAR", 2, 0},

	// Arithmetic: pops 2, pushes 1
	OpAdd8:  {"ADD8", 0, -1},
	OpAdd16: {"ADD16", 0, -1},
	OpSub8:  {"SUB8", 0, -1},
	OpSub16: {"SUB16", 0, -1},
	OpMul8:  {"MUL8", 0, -1},
	OpMul16: {"MUL16", 0, -1},
	OpDiv8:  {"DIV8", 0, -1},
	OpDiv16: {"DIV16", 0, -1},
	OpMod8:  {"MOD8", 0, -1},
	OpMod16: {"MOD16", 0, -1},
	OpAnd:   {"AND", 0, -1},
	OpOr:    {"OR", 0, -1},
	OpXor:   {"XOR", 0, -1},
	OpShl:   {"SHL", 0, -1},
	OpShr:   {"SHR", 0, -1},

	// Comparisons: pops 2, pushes 1
	OpCmpEQ: {"CMP_EQ", 0, -1},
	OpCmpNE: {"CMP_NE", 0, -1},
	OpCmpLT: {"CMP_LT", 0, -1},
	OpCmpLE: {"CMP_LE", 0, -1},
	OpCmpGT: {"CMP_GT", 0, -1},
	OpCmpGE: {"CMP_GE", 0, -1},

	// Control flow
	OpJump:      {"JUMP", 2, 0},
	OpJumpTrue:  {"JUMP_TRUE", 2, -1},
	OpJumpFalse: {"JUMP_FALSE", 2, -1},
	OpCall:      {"CALL", 2, 0},
	OpReturn:    {"RETURN", 0, 0},

	// Threading
	OpWaitFrames: {"WAIT_FRAMES", 1, 0},
	OpWaitAnim:   {"WAIT_ANIM", 1, 0},
	OpWaitInput:  {"WAIT_INPUT", 1, 0},
	OpWaitThread: {"WAIT_THREAD", 0, -1},
	OpSpawn:      {"SPAWN", 2, 1},
	OpTerminate:  {"TERMINATE", 0, 0},

	// Native calls
	OpNative: {"NATIVE", 3, -1}, // variable: pops argc, pushes result
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0, StackEffect: 0}
}

// Valid reports whether op is a defined instruction.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitRaw appends a raw byte to the bytecode.
func (b *BytecodeBuilder) EmitRaw(data byte) {
	b.bytes = append(b.bytes, data)
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitNative appends a NATIVE instruction.
func (b *BytecodeBuilder) EmitNative(id uint16, argc uint8) {
	b.bytes = append(b.bytes, byte(OpNative), byte(id), byte(id>>8), argc)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode.
type Label struct {
	resolved bool
	position int   // position to patch (if unresolved) or target (if resolved)
	refs     []int // positions that reference this label
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{resolved: false, refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	// Patch all forward references
	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		// Backward jump: calculate offset
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		// Forward jump: record position for later patching
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// EmitJumpAbsolute emits a jump to an absolute position (for backward jumps).
func (b *BytecodeBuilder) EmitJumpAbsolute(op Opcode, target int) {
	b.bytes = append(b.bytes, byte(op))
	offset := target - (len(b.bytes) + 2)
	b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
}

// ---------------------------------------------------------------------------
// Bytecode reader for interpretation and disassembly
// ---------------------------------------------------------------------------

// BytecodeReader reads bytecode for interpretation or disassembly.
type BytecodeReader struct {
	bytes []byte
	pos   int
}

// NewBytecodeReader creates a reader for bytecode.
func NewBytecodeReader(bc []byte) *BytecodeReader {
	return &BytecodeReader{bytes: bc, pos: 0}
}

// Position returns the current read position.
func (r *BytecodeReader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *BytecodeReader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *BytecodeReader) ReadOpcode() Opcode {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	op := Opcode(r.bytes[r.pos])
	r.pos++
	return op
}

// ReadByte reads a single byte operand.
func (r *BytecodeReader) ReadByte() byte {
	if r.pos >= len(r.bytes) {
		panic("bytecode underflow")
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *BytecodeReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic("bytecode underflow")
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt16 reads a signed 16-bit operand (little-endian).
func (r *BytecodeReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// Skip advances the position by n bytes.
func (r *BytecodeReader) Skip(n int) {
	r.pos += n
}

// Seek sets the read position.
func (r *BytecodeReader) Seek(pos int) {
	r.pos = pos
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's
// position. Returns the string representation and advances the reader.
func DisassembleInstruction(r *BytecodeReader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch op {
	// No operands
	case OpNOP, OpHALT, OpDup, OpPop, OpSwap,
		OpAdd8, OpAdd16, OpSub8, OpSub16, OpMul8, OpMul16,
		OpDiv8, OpDiv16, OpMod8, OpMod16,
		OpAnd, OpOr, OpXor, OpShl, OpShr,
		OpCmpEQ, OpCmpNE, OpCmpLT, OpCmpLE, OpCmpGT, OpCmpGE,
		OpReturn, OpWaitThread, OpTerminate:
		return fmt.Sprintf("%04d  %s", pos, info.Name)

	// 8-bit operand
	case OpPushImm8, OpWaitFrames, OpWaitAnim, OpWaitInput:
		v := r.ReadByte()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, v)

	// 16-bit operand
	case OpPushConst, OpPushImm16, OpPushFlag, OpPushVar,
		OpStoreFlag, OpStoreVar, OpIncVar, OpDecVar,
		OpCall, OpSpawn:
		idx := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpJump, OpJumpTrue, OpJumpFalse:
		offset := r.ReadInt16()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)

	// Complex operands
	case OpNative:
		id := r.ReadUint16()
		argc := r.ReadByte()
		return fmt.Sprintf("%04d  %s id=%d argc=%d", pos, info.Name, id, argc)

	default:
		// Skip unknown operands
		r.Skip(info.OperandBytes)
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte) string {
	r := NewBytecodeReader(bc)
	var result string
	for r.HasMore() {
		if result != "" {
			result += "\n"
		}
		result += DisassembleInstruction(r)
	}
	return result
}
