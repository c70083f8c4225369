package vm

import (
	"errors"
	"fmt"

	"github.com/epochengine/epoch/container"
)

// Script memory geometry. WorldState mirrors these sizes; programs
// addressing outside them are rejected at load time.
const (
	NumFlags = 0x2000 // persistent flag bits
	NumVars  = 0x400  // persistent u16 variable cells
)

var (
	ErrInvalidProgram    = errors.New("invalid program")
	ErrUnboundNativeCall = errors.New("unbound native call")
)

// ---------------------------------------------------------------------------
// Program structure
// ---------------------------------------------------------------------------

// TriggerKind says how an entry point is meant to be started.
type TriggerKind uint8

const (
	TriggerStartup  TriggerKind = 0 // fires when the map loads
	TriggerActivate TriggerKind = 1 // fires on player confirm at the trigger
	TriggerTouch    TriggerKind = 2 // fires on walking into the trigger
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerStartup:
		return "startup"
	case TriggerActivate:
		return "activate"
	case TriggerTouch:
		return "touch"
	}
	return fmt.Sprintf("trigger(%d)", uint8(k))
}

// Policy says what happens when a trigger fires against an entity whose
// control channel is already owned by a running thread.
type Policy uint8

const (
	PolicyDefault Policy = 0 // resolve per trigger kind from the policy table
	PolicyQueue   Policy = 1 // run after the current owner completes
	PolicyDrop    Policy = 2 // silently ignored
)

func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyQueue:
		return "queue"
	case PolicyDrop:
		return "drop"
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// Entry is one named entry point into a program's code.
type Entry struct {
	ID      uint16
	Trigger TriggerKind
	Policy  Policy
	Offset  uint32
}

// ConstTag discriminates constant-pool values.
type ConstTag uint8

const (
	ConstInt    ConstTag = 0
	ConstString ConstTag = 1
	ConstRecord ConstTag = 2
)

// Const is one constant-pool value. Integers and record refs push their
// value directly; strings push their pool index, which natives resolve
// back through the running program.
type Const struct {
	Tag    ConstTag
	Int    int32
	Str    string
	Record container.RecordID
}

// Program is a validated script ready for execution. Programs are
// immutable once published; threads share them freely.
type Program struct {
	ID      container.RecordID
	Entries []Entry
	Consts  []Const
	Code    []byte

	entryIdx map[uint16]int
}

// NewProgram assembles a program from its parts. The entry index is
// built here; duplicate entry ids are an error.
func NewProgram(id container.RecordID, entries []Entry, consts []Const, code []byte) (*Program, error) {
	p := &Program{
		ID:       id,
		Entries:  entries,
		Consts:   consts,
		Code:     code,
		entryIdx: make(map[uint16]int, len(entries)),
	}
	for i, e := range entries {
		if _, dup := p.entryIdx[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entry id %d", ErrInvalidProgram, e.ID)
		}
		p.entryIdx[e.ID] = i
	}
	return p, nil
}

// Entry resolves an entry point by id.
func (p *Program) Entry(id uint16) (*Entry, bool) {
	i, ok := p.entryIdx[id]
	if !ok {
		return nil, false
	}
	return &p.Entries[i], true
}

// ConstAt returns the pool value at idx, or false when out of range.
func (p *Program) ConstAt(idx uint16) (Const, bool) {
	if int(idx) >= len(p.Consts) {
		return Const{}, false
	}
	return p.Consts[idx], true
}

// StringAt resolves a string constant by pool index, as pushed by
// PUSH_CONST. Non-string constants report false.
func (p *Program) StringAt(idx int32) (string, bool) {
	if idx < 0 || int(idx) >= len(p.Consts) {
		return "", false
	}
	c := p.Consts[idx]
	if c.Tag != ConstString {
		return "", false
	}
	return c.Str, true
}

// Disassemble returns a listing of the program's code.
func (p *Program) Disassemble() string {
	return Disassemble(p.Code)
}

// ---------------------------------------------------------------------------
// Load-time verification
// ---------------------------------------------------------------------------

// NativeSet is the part of the host's call table verification needs.
type NativeSet interface {
	HasNative(id uint16) bool
}

// Verify checks a program against the execution contract: every opcode
// defined, every jump landing on an instruction boundary inside the
// code, every constant, flag, variable, entry and native operand
// resolvable. A program passing Verify cannot fault on structural
// grounds, only on data-dependent ones (division by zero, stack
// depth). A nil natives set skips the native-call check.
func Verify(p *Program, natives NativeSet) error {
	// First pass: decode linearly, recording instruction boundaries and
	// checking operand ranges as they stream past.
	bounds := make([]bool, len(p.Code)+1)
	pos := 0
	for pos < len(p.Code) {
		bounds[pos] = true
		op := Opcode(p.Code[pos])
		if !op.Valid() {
			return fmt.Errorf("%w: undefined opcode %#02x at %d", ErrInvalidProgram, byte(op), pos)
		}
		width := 1 + op.Info().OperandBytes
		if pos+width > len(p.Code) {
			return fmt.Errorf("%w: %s at %d truncated", ErrInvalidProgram, op, pos)
		}

		switch op {
		case OpPushConst:
			idx := leUint16(p.Code[pos+1:])
			if int(idx) >= len(p.Consts) {
				return fmt.Errorf("%w: constant %d of %d at %d", ErrInvalidProgram, idx, len(p.Consts), pos)
			}
		case OpPushFlag, OpStoreFlag:
			id := leUint16(p.Code[pos+1:])
			if id >= NumFlags {
				return fmt.Errorf("%w: flag id %#x at %d", ErrInvalidProgram, id, pos)
			}
		case OpPushVar, OpStoreVar, OpIncVar, OpDecVar:
			idx := leUint16(p.Code[pos+1:])
			if idx >= NumVars {
				return fmt.Errorf("%w: variable %#x at %d", ErrInvalidProgram, idx, pos)
			}
		case OpCall, OpSpawn:
			id := leUint16(p.Code[pos+1:])
			if _, ok := p.Entry(id); !ok {
				return fmt.Errorf("%w: %s targets unknown entry %d at %d", ErrInvalidProgram, op, id, pos)
			}
		case OpNative:
			id := leUint16(p.Code[pos+1:])
			if natives != nil && !natives.HasNative(id) {
				return fmt.Errorf("%w: id %#04x at %d", ErrUnboundNativeCall, id, pos)
			}
		}
		pos += width
	}
	bounds[len(p.Code)] = true // falling off the end completes the thread

	// Second pass: jump targets against the boundary set.
	pos = 0
	for pos < len(p.Code) {
		op := Opcode(p.Code[pos])
		width := 1 + op.Info().OperandBytes
		switch op {
		case OpJump, OpJumpTrue, OpJumpFalse:
			rel := int16(leUint16(p.Code[pos+1:]))
			target := pos + width + int(rel)
			if target < 0 || target > len(p.Code) || !bounds[target] {
				return fmt.Errorf("%w: %s at %d targets %d", ErrInvalidProgram, op, pos, target)
			}
		}
		pos += width
	}

	// Entry offsets must be boundaries too.
	for _, e := range p.Entries {
		if e.Offset > uint32(len(p.Code)) || !bounds[e.Offset] {
			return fmt.Errorf("%w: entry %d offset %d not on an instruction", ErrInvalidProgram, e.ID, e.Offset)
		}
	}
	return nil
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
