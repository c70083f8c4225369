package vm

import (
	"fmt"

	"github.com/epochengine/epoch/container"
)

// ThreadID names a live script thread. Zero is never assigned; start
// operations return it when the start was dropped or queued instead.
type ThreadID int32

// EntityID names a scene entity (NPC, party member, battle actor).
type EntityID uint8

// Operand stack depth per thread. Scripts that exceed it fault.
const StackSize = 64

// MaxCallDepth is the hard ceiling on nested CALLs. The configured
// depth may be lower, never higher.
const MaxCallDepth = 16

// ThreadState is a thread's scheduling state.
type ThreadState uint8

const (
	ThreadReady      ThreadState = iota // runnable this tick
	ThreadRunning                       // currently executing
	ThreadSuspended                     // blocked on a Wait
	ThreadCompleted                     // ran off the end or hit HALT
	ThreadTerminated                    // killed by TERMINATE or the host
	ThreadFaulted                       // stopped by a runtime fault
)

func (s ThreadState) String() string {
	switch s {
	case ThreadReady:
		return "ready"
	case ThreadRunning:
		return "running"
	case ThreadSuspended:
		return "suspended"
	case ThreadCompleted:
		return "completed"
	case ThreadTerminated:
		return "terminated"
	case ThreadFaulted:
		return "faulted"
	}
	return "state(?)"
}

// Done reports whether the thread has finished for good.
func (s ThreadState) Done() bool {
	return s == ThreadCompleted || s == ThreadTerminated || s == ThreadFaulted
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

// FaultCause classifies a runtime fault.
type FaultCause uint8

const (
	FaultStackOverflow  FaultCause = iota // operand stack exceeded StackSize
	FaultStackUnderflow                   // pop from an empty stack
	FaultCallDepth                        // CALL past the configured depth
	FaultDivByZero                        // DIV or MOD with zero divisor
	FaultBadOpcode                        // unknown opcode reached at runtime
	FaultBadAccess                        // flag/var/const index out of range
	FaultNative                           // host call returned an error
)

func (c FaultCause) String() string {
	switch c {
	case FaultStackOverflow:
		return "stack overflow"
	case FaultStackUnderflow:
		return "stack underflow"
	case FaultCallDepth:
		return "call depth exceeded"
	case FaultDivByZero:
		return "division by zero"
	case FaultBadOpcode:
		return "bad opcode"
	case FaultBadAccess:
		return "bad access"
	case FaultNative:
		return "native call failed"
	}
	return "fault(?)"
}

// Fault records where and why a thread stopped abnormally. The
// scheduler logs it, releases the thread's entity, and leaves every
// other thread untouched.
type Fault struct {
	Program container.RecordID
	Entry   uint16
	PC      int
	Op      Opcode
	Cause   FaultCause
	Err     error // non-nil for FaultNative
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fault in %08x entry %d at pc %d (%s): %s: %v",
			uint32(f.Program), f.Entry, f.PC, f.Op.Name(), f.Cause, f.Err)
	}
	return fmt.Sprintf("fault in %08x entry %d at pc %d (%s): %s",
		uint32(f.Program), f.Entry, f.PC, f.Op.Name(), f.Cause)
}

func (f *Fault) Unwrap() error { return f.Err }

// ---------------------------------------------------------------------------
// Thread
// ---------------------------------------------------------------------------

// callFrame is one CALL activation. Only the return address matters to
// execution; the entry id is kept for fault reports.
type callFrame struct {
	entry uint16
	retPC int
}

// Thread is a single cooperative script execution: a program counter,
// an operand stack, and a call stack over one program's code. Threads
// never run concurrently; the scheduler steps them one at a time in a
// fixed order.
type Thread struct {
	id      ThreadID
	program *Program
	entry   uint16 // entry point the thread was started from
	trigger TriggerKind

	entity EntityID
	owns   bool  // whether entity is held exclusively by this thread
	prio   uint8 // owning-entity priority, ties broken by seq
	seq    uint64

	state    ThreadState
	wait     Wait
	wake     int32 // pushed on resume when pushWake is set
	pushWake bool

	pc    int
	stack [StackSize]int32
	sp    int
	calls []callFrame

	fault *Fault
}

// ID returns the thread's identifier.
func (t *Thread) ID() ThreadID { return t.id }

// Program returns the program the thread executes.
func (t *Thread) Program() *Program { return t.program }

// Entry returns the entry point id the thread was started from.
func (t *Thread) Entry() uint16 { return t.entry }

// State returns the thread's scheduling state.
func (t *Thread) State() ThreadState { return t.state }

// Waiting returns the suspension descriptor, meaningful only while the
// thread is ThreadSuspended.
func (t *Thread) Waiting() Wait { return t.wait }

// Entity returns the owned entity and whether one is held.
func (t *Thread) Entity() (EntityID, bool) { return t.entity, t.owns }

// PC returns the current program counter.
func (t *Thread) PC() int { return t.pc }

// Fault returns the fault that stopped the thread, or nil.
func (t *Thread) Fault() *Fault { return t.fault }

// Depth returns the current call nesting depth.
func (t *Thread) Depth() int { return len(t.calls) }

func (t *Thread) faultAt(op Opcode, pc int, cause FaultCause, err error) {
	entry := t.entry
	if n := len(t.calls); n > 0 {
		entry = t.calls[n-1].entry
	}
	t.fault = &Fault{
		Program: t.program.ID,
		Entry:   entry,
		PC:      pc,
		Op:      op,
		Cause:   cause,
		Err:     err,
	}
	t.state = ThreadFaulted
}

func (t *Thread) push(v int32) bool {
	if t.sp >= StackSize {
		return false
	}
	t.stack[t.sp] = v
	t.sp++
	return true
}

func (t *Thread) pop() (int32, bool) {
	if t.sp == 0 {
		return 0, false
	}
	t.sp--
	return t.stack[t.sp], true
}

// suspend parks the thread on w. The resume value, if the wait
// produces one, is pushed by the scheduler at wake time.
func (t *Thread) suspend(w Wait, pushOnWake bool) {
	t.wait = w
	t.pushWake = pushOnWake
	t.state = ThreadSuspended
}

// resume makes a suspended thread runnable with the given wake value.
func (t *Thread) resume(wake int32) {
	t.wait = Wait{}
	t.wake = wake
	t.state = ThreadReady
}
