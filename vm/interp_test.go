package vm

import (
	"errors"
	"testing"
)

// testMemory is a flat script memory for exercising programs.
type testMemory struct {
	flags [NumFlags]bool
	vars  [NumVars]uint16
}

func (m *testMemory) Flag(id uint16) bool        { return m.flags[id] }
func (m *testMemory) SetFlag(id uint16, on bool) { m.flags[id] = on }
func (m *testMemory) Var(idx uint16) uint16      { return m.vars[idx] }
func (m *testMemory) SetVar(idx uint16, v uint16) { m.vars[idx] = v }

// dispatchFunc adapts a function to the Dispatcher interface.
type dispatchFunc func(t *Thread, id uint16, args []int32) (NativeResult, error)

func (f dispatchFunc) Call(t *Thread, id uint16, args []int32) (NativeResult, error) {
	return f(t, id, args)
}

func buildProgram(t *testing.T, consts []Const, build func(b *BytecodeBuilder)) *Program {
	t.Helper()
	b := NewBytecodeBuilder()
	build(b)
	p, err := NewProgram(1, []Entry{{ID: 0, Trigger: TriggerActivate}}, consts, b.Bytes())
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	if err := Verify(p, nil); err != nil {
		t.Fatalf("Verify: %v\n%s", err, p.Disassemble())
	}
	return p
}

// runToEnd executes a single-entry program until every thread ends,
// with a tick cap so broken suspension cannot hang the test.
func runToEnd(t *testing.T, mem Memory, opts Options, consts []Const, build func(b *BytecodeBuilder)) *Scheduler {
	t.Helper()
	prog := buildProgram(t, consts, build)
	opts.Memory = mem
	s := NewScheduler(opts)
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 200 && s.Live() > 0; i++ {
		s.Tick(0)
	}
	if s.Live() > 0 {
		t.Fatalf("threads still live after 200 ticks:\n%+v", s.Snapshot())
	}
	return s
}

// ---------------------------------------------------------------------------
// Arithmetic and stack semantics
// ---------------------------------------------------------------------------

func TestArithmetic8BitWraps(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b byte
		want uint16
	}{
		{"add wraps", OpAdd8, 200, 100, 44},
		{"sub wraps", OpSub8, 10, 20, 246},
		{"mul wraps", OpMul8, 16, 17, 16},
		{"div", OpDiv8, 200, 7, 28},
		{"mod", OpMod8, 200, 7, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &testMemory{}
			runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
				b.EmitByte(OpPushImm8, tt.a)
				b.EmitByte(OpPushImm8, tt.b)
				b.Emit(tt.op)
				b.EmitUint16(OpStoreVar, 0)
				b.Emit(OpHALT)
			})
			if mem.vars[0] != tt.want {
				t.Errorf("result = %d, want %d", mem.vars[0], tt.want)
			}
		})
	}
}

func TestArithmetic16BitWraps(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b uint16
		want uint16
	}{
		{"add wraps", OpAdd16, 0xFFFF, 2, 1},
		{"sub wraps", OpSub16, 0, 1, 0xFFFF},
		{"mul wraps", OpMul16, 0x1000, 0x11, 0x1000 * 0x11 & 0xFFFF},
		{"div", OpDiv16, 40000, 7, 5714},
		{"mod", OpMod16, 40000, 7, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &testMemory{}
			runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
				b.EmitUint16(OpPushImm16, tt.a)
				b.EmitUint16(OpPushImm16, tt.b)
				b.Emit(tt.op)
				b.EmitUint16(OpStoreVar, 0)
				b.Emit(OpHALT)
			})
			if mem.vars[0] != tt.want {
				t.Errorf("result = %d, want %d", mem.vars[0], tt.want)
			}
		})
	}
}

func TestBitwiseAndShifts(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b uint16
		want uint16
	}{
		{"and", OpAnd, 0x0FF0, 0x00FF, 0x00F0},
		{"or", OpOr, 0x0F00, 0x00F0, 0x0FF0},
		{"xor", OpXor, 0x0FF0, 0x00FF, 0x0F0F},
		{"shl", OpShl, 0x0001, 4, 0x0010},
		{"shl drops high bits", OpShl, 0x8001, 1, 0x0002},
		{"shl count mod 16", OpShl, 0x0001, 17, 0x0002},
		{"shr", OpShr, 0x8000, 15, 0x0001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &testMemory{}
			runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
				b.EmitUint16(OpPushImm16, tt.a)
				b.EmitUint16(OpPushImm16, tt.b)
				b.Emit(tt.op)
				b.EmitUint16(OpStoreVar, 0)
				b.Emit(OpHALT)
			})
			if mem.vars[0] != tt.want {
				t.Errorf("result = %#04x, want %#04x", mem.vars[0], tt.want)
			}
		})
	}
}

func TestComparisonsAreUnsigned(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b uint16
		want uint16
	}{
		{"eq", OpCmpEQ, 5, 5, 1},
		{"ne", OpCmpNE, 5, 5, 0},
		{"high bit compares high", OpCmpGT, 0xFFFF, 1, 1},
		{"lt", OpCmpLT, 0x7FFF, 0x8000, 1},
		{"le equal", OpCmpLE, 9, 9, 1},
		{"ge", OpCmpGE, 0x8000, 0x7FFF, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &testMemory{}
			runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
				b.EmitUint16(OpPushImm16, tt.a)
				b.EmitUint16(OpPushImm16, tt.b)
				b.Emit(tt.op)
				b.EmitUint16(OpStoreVar, 0)
				b.Emit(OpHALT)
			})
			if mem.vars[0] != tt.want {
				t.Errorf("result = %d, want %d", mem.vars[0], tt.want)
			}
		})
	}
}

func TestDupPopSwap(t *testing.T) {
	mem := &testMemory{}
	runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
		b.EmitByte(OpPushImm8, 3)
		b.EmitByte(OpPushImm8, 9)
		b.Emit(OpSwap) // 9 3
		b.Emit(OpDup)  // 9 3 3
		b.Emit(OpPop)  // 9 3
		b.EmitUint16(OpStoreVar, 0) // 3
		b.EmitUint16(OpStoreVar, 1) // 9
		b.Emit(OpHALT)
	})
	if mem.vars[0] != 3 || mem.vars[1] != 9 {
		t.Errorf("vars = [%d %d], want [3 9]", mem.vars[0], mem.vars[1])
	}
}

func TestFlagsAndVars(t *testing.T) {
	mem := &testMemory{}
	mem.vars[7] = 0xFFFF
	runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
		b.EmitByte(OpPushImm8, 2) // nonzero stores true
		b.EmitUint16(OpStoreFlag, 0x123)
		b.EmitUint16(OpPushFlag, 0x123)
		b.EmitUint16(OpStoreVar, 0)
		b.EmitUint16(OpIncVar, 7) // wraps to 0
		b.EmitUint16(OpDecVar, 8) // wraps to 0xFFFF
		b.Emit(OpHALT)
	})
	if !mem.flags[0x123] {
		t.Error("flag 0x123 should be set")
	}
	if mem.vars[0] != 1 {
		t.Errorf("flag read back = %d, want 1", mem.vars[0])
	}
	if mem.vars[7] != 0 {
		t.Errorf("INC_VAR wrap = %d, want 0", mem.vars[7])
	}
	if mem.vars[8] != 0xFFFF {
		t.Errorf("DEC_VAR wrap = %#x, want 0xffff", mem.vars[8])
	}
}

func TestConstPool(t *testing.T) {
	consts := []Const{
		{Tag: ConstInt, Int: 1234},
		{Tag: ConstString, Str: "epoch"},
	}
	var gotIdx int32 = -1
	var gotStr string
	disp := dispatchFunc(func(th *Thread, id uint16, args []int32) (NativeResult, error) {
		gotIdx = args[0]
		gotStr, _ = th.Program().StringAt(args[0])
		return NativeResult{}, nil
	})
	mem := &testMemory{}
	runToEnd(t, mem, Options{Dispatcher: disp}, consts, func(b *BytecodeBuilder) {
		b.EmitUint16(OpPushConst, 0)
		b.EmitUint16(OpStoreVar, 0)
		b.EmitUint16(OpPushConst, 1) // pushes the pool index
		b.EmitNative(NativeShowDialogue, 1)
		b.Emit(OpPop)
		b.Emit(OpHALT)
	})
	if mem.vars[0] != 1234 {
		t.Errorf("int const = %d, want 1234", mem.vars[0])
	}
	if gotIdx != 1 {
		t.Errorf("string const pushed %d, want pool index 1", gotIdx)
	}
	if gotStr != "epoch" {
		t.Errorf("resolved string = %q, want %q", gotStr, "epoch")
	}
}

func TestRunsOffEndCompletes(t *testing.T) {
	mem := &testMemory{}
	s := runToEnd(t, mem, Options{}, nil, func(b *BytecodeBuilder) {
		b.EmitUint16(OpIncVar, 0)
		// No HALT: falling off the end completes the thread.
	})
	if mem.vars[0] != 1 {
		t.Errorf("var 0 = %d, want 1", mem.vars[0])
	}
	if s.Live() != 0 {
		t.Error("thread should have completed")
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func TestCallReturn(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitUint16(OpCall, 1)
	b.EmitUint16(OpIncVar, 1)
	b.Emit(OpHALT)
	sub := b.Len()
	b.EmitUint16(OpIncVar, 0)
	b.Emit(OpReturn)

	p, err := NewProgram(1, []Entry{
		{ID: 0, Offset: 0},
		{ID: 1, Offset: uint32(sub)},
	}, nil, b.Bytes())
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	if err := Verify(p, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	mem := &testMemory{}
	s := NewScheduler(Options{Memory: mem})
	if _, err := s.Start(p, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if s.Live() != 0 {
		t.Fatalf("thread still live: %+v", s.Snapshot())
	}
	if mem.vars[0] != 1 || mem.vars[1] != 1 {
		t.Errorf("vars = [%d %d], want [1 1]", mem.vars[0], mem.vars[1])
	}
}

func TestCallDepthFault(t *testing.T) {
	b := NewBytecodeBuilder()
	b.EmitUint16(OpCall, 1)
	b.Emit(OpHALT)
	sub := b.Len()
	b.EmitUint16(OpCall, 1) // unbounded recursion
	b.Emit(OpReturn)

	p, err := NewProgram(1, []Entry{
		{ID: 0, Offset: 0},
		{ID: 1, Trigger: TriggerActivate, Offset: uint32(sub)},
	}, nil, b.Bytes())
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}

	var fault *Fault
	mem := &testMemory{}
	s := NewScheduler(Options{
		Memory:    mem,
		CallDepth: 4,
		OnFault:   func(_ *Thread, f *Fault) { fault = f },
	})
	if _, err := s.Start(p, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)

	if fault == nil {
		t.Fatal("expected a fault")
	}
	if fault.Cause != FaultCallDepth {
		t.Errorf("cause = %v, want call depth", fault.Cause)
	}
	if fault.Entry != 1 {
		t.Errorf("faulting entry = %d, want 1", fault.Entry)
	}
	if s.Live() != 0 {
		t.Error("faulted thread should have been retired")
	}
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestDivideByZeroFaultsThreadOnly(t *testing.T) {
	mem := &testMemory{}
	var fault *Fault
	s := NewScheduler(Options{
		Memory:  mem,
		OnFault: func(_ *Thread, f *Fault) { fault = f },
	})

	bad := buildProgram(t, nil, func(b *BytecodeBuilder) {
		b.EmitByte(OpPushImm8, 1)
		b.EmitByte(OpPushImm8, 0)
		b.Emit(OpDiv8)
		b.Emit(OpHALT)
	})
	good := buildProgram(t, nil, func(b *BytecodeBuilder) {
		b.EmitUint16(OpIncVar, 0)
		b.Emit(OpHALT)
	})

	if _, err := s.Start(bad, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Start(good, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)

	if fault == nil {
		t.Fatal("expected a fault")
	}
	if fault.Cause != FaultDivByZero {
		t.Errorf("cause = %v, want division by zero", fault.Cause)
	}
	if fault.Op != OpDiv8 {
		t.Errorf("op = %v, want DIV8", fault.Op)
	}
	if fault.PC != 4 {
		t.Errorf("pc = %d, want 4", fault.PC)
	}
	if mem.vars[0] != 1 {
		t.Error("the healthy thread should have run to completion")
	}
}

func TestStackOverflowFault(t *testing.T) {
	var fault *Fault
	mem := &testMemory{}
	s := NewScheduler(Options{
		Memory:  mem,
		OnFault: func(_ *Thread, f *Fault) { fault = f },
	})
	prog := buildProgram(t, nil, func(b *BytecodeBuilder) {
		for i := 0; i < StackSize+1; i++ {
			b.EmitByte(OpPushImm8, 0)
		}
		b.Emit(OpHALT)
	})
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if fault == nil || fault.Cause != FaultStackOverflow {
		t.Fatalf("fault = %+v, want stack overflow", fault)
	}
}

func TestStackUnderflowFault(t *testing.T) {
	var fault *Fault
	mem := &testMemory{}
	s := NewScheduler(Options{
		Memory:  mem,
		OnFault: func(_ *Thread, f *Fault) { fault = f },
	})
	prog := buildProgram(t, nil, func(b *BytecodeBuilder) {
		b.Emit(OpPop)
		b.Emit(OpHALT)
	})
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if fault == nil || fault.Cause != FaultStackUnderflow {
		t.Fatalf("fault = %+v, want stack underflow", fault)
	}
}

// ---------------------------------------------------------------------------
// Native calls
// ---------------------------------------------------------------------------

func TestNativeCall(t *testing.T) {
	var gotID uint16
	var gotArgs []int32
	disp := dispatchFunc(func(th *Thread, id uint16, args []int32) (NativeResult, error) {
		gotID = id
		gotArgs = append([]int32(nil), args...)
		return NativeResult{Value: 77}, nil
	})
	mem := &testMemory{}
	runToEnd(t, mem, Options{Dispatcher: disp}, nil, func(b *BytecodeBuilder) {
		b.EmitByte(OpPushImm8, 11)
		b.EmitByte(OpPushImm8, 22)
		b.EmitNative(NativeAddItem, 2)
		b.EmitUint16(OpStoreVar, 0)
		b.Emit(OpHALT)
	})
	if gotID != NativeAddItem {
		t.Errorf("native id = %#04x, want %#04x", gotID, NativeAddItem)
	}
	if len(gotArgs) != 2 || gotArgs[0] != 11 || gotArgs[1] != 22 {
		t.Errorf("args = %v, want [11 22]", gotArgs)
	}
	if mem.vars[0] != 77 {
		t.Errorf("result = %d, want 77", mem.vars[0])
	}
}

func TestNativeErrorFaults(t *testing.T) {
	sentinel := errors.New("no such item")
	disp := dispatchFunc(func(th *Thread, id uint16, args []int32) (NativeResult, error) {
		return NativeResult{}, sentinel
	})
	var fault *Fault
	mem := &testMemory{}
	s := NewScheduler(Options{
		Memory:     mem,
		Dispatcher: disp,
		OnFault:    func(_ *Thread, f *Fault) { fault = f },
	})
	prog := buildProgram(t, nil, func(b *BytecodeBuilder) {
		b.EmitNative(NativeHealParty, 0)
		b.Emit(OpPop)
		b.Emit(OpHALT)
	})
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if fault == nil || fault.Cause != FaultNative {
		t.Fatalf("fault = %+v, want native cause", fault)
	}
	if !errors.Is(fault, sentinel) {
		t.Error("fault should wrap the dispatcher error")
	}
}

func TestNativeWithoutDispatcherFaults(t *testing.T) {
	var fault *Fault
	mem := &testMemory{}
	s := NewScheduler(Options{
		Memory:  mem,
		OnFault: func(_ *Thread, f *Fault) { fault = f },
	})
	prog := buildProgram(t, nil, func(b *BytecodeBuilder) {
		b.EmitNative(NativeHealParty, 0)
		b.Emit(OpPop)
		b.Emit(OpHALT)
	})
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if fault == nil || !errors.Is(fault, ErrUnboundNativeCall) {
		t.Fatalf("fault = %+v, want unbound native call", fault)
	}
}

func TestBudgetYield(t *testing.T) {
	mem := &testMemory{}
	s := NewScheduler(Options{Memory: mem, TickBudget: 64})
	prog := buildProgram(t, nil, func(b *BytecodeBuilder) {
		loop := b.NewLabel()
		b.Mark(loop)
		b.EmitUint16(OpIncVar, 0)
		b.EmitJump(OpJump, loop)
	})
	if _, err := s.Start(prog, 0, StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Tick(0)
	if s.Live() != 1 {
		t.Fatal("spinning thread should still be live")
	}
	snap := s.Snapshot()
	if snap[0].State != ThreadReady {
		t.Errorf("state = %v, want ready", snap[0].State)
	}
	first := mem.vars[0]
	if first == 0 {
		t.Error("the thread should have made progress before yielding")
	}
	s.Tick(0)
	if mem.vars[0] <= first {
		t.Error("the thread should continue on the next tick")
	}
}
