package vm

import (
	"errors"
	"testing"
)

// nativeSet is a stub call table for verification tests.
type nativeSet map[uint16]bool

func (s nativeSet) HasNative(id uint16) bool { return s[id] }

func mustProgram(t *testing.T, entries []Entry, consts []Const, code []byte) *Program {
	t.Helper()
	p, err := NewProgram(0x1234ABCD, entries, consts, code)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	return p
}

func TestNewProgramDuplicateEntry(t *testing.T) {
	entries := []Entry{
		{ID: 3, Offset: 0},
		{ID: 3, Offset: 1},
	}
	_, err := NewProgram(1, entries, nil, []byte{byte(OpHALT), byte(OpHALT)})
	if !errors.Is(err, ErrInvalidProgram) {
		t.Fatalf("err = %v, want ErrInvalidProgram", err)
	}
}

func TestProgramEntryLookup(t *testing.T) {
	p := mustProgram(t, []Entry{
		{ID: 0, Trigger: TriggerStartup, Offset: 0},
		{ID: 7, Trigger: TriggerActivate, Policy: PolicyQueue, Offset: 1},
	}, nil, []byte{byte(OpHALT), byte(OpHALT)})

	e, ok := p.Entry(7)
	if !ok {
		t.Fatal("entry 7 not found")
	}
	if e.Trigger != TriggerActivate || e.Policy != PolicyQueue || e.Offset != 1 {
		t.Errorf("entry 7 = %+v", *e)
	}
	if _, ok := p.Entry(8); ok {
		t.Error("entry 8 should not exist")
	}
}

func TestProgramStringAt(t *testing.T) {
	consts := []Const{
		{Tag: ConstInt, Int: 42},
		{Tag: ConstString, Str: "Leene Square"},
	}
	p := mustProgram(t, []Entry{{ID: 0}}, consts, []byte{byte(OpHALT)})

	if s, ok := p.StringAt(1); !ok || s != "Leene Square" {
		t.Errorf("StringAt(1) = %q, %v", s, ok)
	}
	if _, ok := p.StringAt(0); ok {
		t.Error("StringAt on an int constant should fail")
	}
	if _, ok := p.StringAt(2); ok {
		t.Error("StringAt out of range should fail")
	}
	if _, ok := p.StringAt(-1); ok {
		t.Error("StringAt negative should fail")
	}
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

func TestVerifyAcceptsWellFormed(t *testing.T) {
	b := NewBytecodeBuilder()
	loop := b.NewLabel()
	b.Mark(loop)
	b.EmitUint16(OpPushFlag, 0x100)
	b.EmitJump(OpJumpFalse, loop)
	b.EmitUint16(OpPushConst, 0)
	b.EmitUint16(OpStoreVar, 0x3FF)
	b.EmitNative(NativeAddItem, 2)
	b.Emit(OpPop)
	b.EmitUint16(OpCall, 1)
	b.Emit(OpHALT)
	sub := b.Len()
	b.Emit(OpReturn)

	p := mustProgram(t, []Entry{
		{ID: 0, Offset: 0},
		{ID: 1, Offset: uint32(sub)},
	}, []Const{{Tag: ConstInt, Int: 5}}, b.Bytes())

	if err := Verify(p, nativeSet{NativeAddItem: true}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyAcceptsJumpToEnd(t *testing.T) {
	// A forward jump landing exactly past the last instruction is a
	// normal way for a script to end.
	b := NewBytecodeBuilder()
	end := b.NewLabel()
	b.EmitJump(OpJump, end)
	b.Emit(OpNOP)
	b.Mark(end)

	p := mustProgram(t, []Entry{{ID: 0, Offset: 0}}, nil, b.Bytes())
	if err := Verify(p, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyAcceptsEntryAtEnd(t *testing.T) {
	code := []byte{byte(OpNOP)}
	p := mustProgram(t, []Entry{{ID: 0, Offset: 1}}, nil, code)
	if err := Verify(p, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifySkipsNativesWithoutSet(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitNative(0xEEEE, 0)
	b.Emit(OpPop)
	p := mustProgram(t, []Entry{{ID: 0, Offset: 0}}, nil, b.Bytes())
	if err := Verify(p, nil); err != nil {
		t.Fatalf("Verify with nil natives: %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	halt := byte(OpHALT)
	tests := []struct {
		name    string
		entries []Entry
		consts  []Const
		code    []byte
		natives NativeSet
		wantErr error
	}{
		{
			name:    "undefined opcode",
			entries: []Entry{{ID: 0}},
			code:    []byte{0xEE},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "truncated operand",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpPushConst), 0x01},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "constant out of range",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpPushConst), 0x00, 0x00, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "flag id out of range",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpPushFlag), 0x00, 0x20, halt}, // 0x2000
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "variable out of range",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpIncVar), 0x00, 0x04, halt}, // 0x400
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "call to unknown entry",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpCall), 0x05, 0x00, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "spawn of unknown entry",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpSpawn), 0x05, 0x00, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "unbound native",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpNative), 0xEE, 0xEE, 0x00, halt},
			natives: nativeSet{NativeAddItem: true},
			wantErr: ErrUnboundNativeCall,
		},
		{
			name:    "jump into an operand",
			entries: []Entry{{ID: 0}},
			// JUMP +1 lands inside the PUSH_IMM16 that follows.
			code:    []byte{byte(OpJump), 0x01, 0x00, byte(OpPushImm16), 0x34, 0x12, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "jump before the code",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpJump), 0xFC, 0xFF, halt}, // -4
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "jump past the end",
			entries: []Entry{{ID: 0}},
			code:    []byte{byte(OpJump), 0x10, 0x00, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "entry into an operand",
			entries: []Entry{{ID: 0, Offset: 1}},
			code:    []byte{byte(OpPushImm8), 0x05, halt},
			wantErr: ErrInvalidProgram,
		},
		{
			name:    "entry past the end",
			entries: []Entry{{ID: 0, Offset: 9}},
			code:    []byte{halt},
			wantErr: ErrInvalidProgram,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProgram(t, tt.entries, tt.consts, tt.code)
			err := Verify(p, tt.natives)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
