package vm

// ---------------------------------------------------------------------------
// Execution context seams
// ---------------------------------------------------------------------------

// Memory is the persistent script storage the VM reads and writes:
// flag bits and u16 variable cells, surviving scene transitions. The
// world state implements it; tests substitute flat arrays. Ids are
// pre-validated against NumFlags/NumVars at program load.
type Memory interface {
	Flag(id uint16) bool
	SetFlag(id uint16, on bool)
	Var(idx uint16) uint16
	SetVar(idx uint16, v uint16)
}

// WaitReason names why a thread is suspended.
type WaitReason uint8

const (
	WaitNone     WaitReason = iota
	WaitFrames              // resumes after a tick count
	WaitAnim                // resumes on an entity's animation completing
	WaitInput               // resumes on input matching a mask
	WaitThread              // resumes when another thread ends
	WaitDialogue            // resumes when the dialogue window closes
	WaitChoice              // resumes on a choice selection
	WaitBattle              // resumes when the battle resolves
)

func (w WaitReason) String() string {
	switch w {
	case WaitNone:
		return "none"
	case WaitFrames:
		return "frames"
	case WaitAnim:
		return "anim"
	case WaitInput:
		return "input"
	case WaitThread:
		return "thread"
	case WaitDialogue:
		return "dialogue"
	case WaitChoice:
		return "choice"
	case WaitBattle:
		return "battle"
	}
	return "wait(?)"
}

// Wait is a thread's suspension descriptor. Only the fields its
// Reason names are meaningful.
type Wait struct {
	Reason WaitReason
	Frames int      // WaitFrames: ticks remaining
	Entity EntityID // WaitAnim: whose animation
	Mask   uint8    // WaitInput: accepted inputs, 0 accepts any
	Thread ThreadID // WaitThread: which thread
}

// NativeResult is what a host call produces. A nil Wait means the call
// finished: Value is pushed. A non-nil Wait suspends the thread after
// the call; the scheduler pushes the wake value when the wait ends.
type NativeResult struct {
	Value int32
	Wait  *Wait
}

// Dispatcher executes native calls. The thread is passed so the host
// can reach the running program (string constants) and owning entity.
// A returned error faults the thread.
type Dispatcher interface {
	Call(t *Thread, id uint16, args []int32) (NativeResult, error)
}
