package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/epochengine/epoch/assets"
	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// Effect classifies what a native call does to the engine.
type Effect uint8

const (
	EffectWorld    Effect = iota // reads or mutates world state, synchronously
	EffectRender                 // emits a data-only frontend or audio request
	EffectBlocking               // suspends the calling thread on an engine event
)

func (e Effect) String() string {
	switch e {
	case EffectWorld:
		return "world"
	case EffectRender:
		return "render"
	case EffectBlocking:
		return "blocking"
	}
	return "effect(?)"
}

var (
	// ErrBadArity is returned when bytecode passes a different number
	// of arguments than the binding declares. The call faults.
	ErrBadArity = errors.New("native argument count mismatch")

	errNoScheduler = errors.New("scheduler not attached")
)

// Binding is one native call implementation with its declared
// contract.
type Binding struct {
	Name   string
	Arity  int
	Effect Effect

	fn func(t *vm.Thread, args []int32) (vm.NativeResult, error)
}

// MapChange is a scene transition requested by a script. Transitions
// never apply mid-tick; the engine takes the pending change after the
// tick completes.
type MapChange struct {
	Map  container.RecordID
	X, Y int
}

// Options wires a Table to the engine's seams. World is required; a
// nil Front or Audio discards that surface's requests.
type Options struct {
	World World
	Front Frontend
	Audio Audio
}

// Table is the fixed native call table. It is built once at boot and
// immutable afterward; it serves both as the verifier's native set and
// as the scheduler's dispatcher.
type Table struct {
	world World
	front Frontend
	audio Audio
	cache *assets.Cache
	sched *vm.Scheduler
	log   commonlog.Logger

	bindings map[uint16]Binding
	pending  *MapChange
}

// NewTable builds the call table over the engine's seams.
func NewTable(opts Options) (*Table, error) {
	if opts.World == nil {
		return nil, errors.New("host: no world attached")
	}
	h := &Table{
		world:    opts.World,
		front:    opts.Front,
		audio:    opts.Audio,
		log:      commonlog.GetLogger("epoch.host"),
		bindings: make(map[uint16]Binding, 48),
	}
	if h.front == nil {
		h.front = NullFrontend{}
	}
	if h.audio == nil {
		h.audio = NullAudio{}
	}
	h.registerEntityCalls()
	h.registerSceneCalls()
	h.registerDialogueCalls()
	h.registerValueCalls()
	h.registerPartyCalls()
	h.registerBattleCalls()
	h.registerAudioCalls()
	h.registerSystemCalls()
	return h, nil
}

// AttachScheduler wires the scheduler that entity-release, dialogue
// and battle calls act on. The scheduler itself is built over the
// table, so wiring is two-phase; the engine attaches before the first
// tick. Calls needing the scheduler fault until then.
func (h *Table) AttachScheduler(s *vm.Scheduler) { h.sched = s }

// AttachAssets wires the cache dialogue calls resolve banks from. The
// cache verifies scripts against this table, so wiring is two-phase
// like the scheduler's. Without it every message renders as the
// missing-text placeholder.
func (h *Table) AttachAssets(c *assets.Cache) { h.cache = c }

// HasNative reports whether id is bound. Program verification uses it
// to reject scripts calling ids this build does not implement.
func (h *Table) HasNative(id uint16) bool {
	_, ok := h.bindings[id]
	return ok
}

// Binding returns the contract metadata for a bound id.
func (h *Table) Binding(id uint16) (Binding, bool) {
	b, ok := h.bindings[id]
	return b, ok
}

// Call dispatches one native call from the interpreter. Unknown ids
// cannot normally reach here past verification; the check remains as a
// fault for defense.
func (h *Table) Call(t *vm.Thread, id uint16, args []int32) (vm.NativeResult, error) {
	b, ok := h.bindings[id]
	if !ok {
		return vm.NativeResult{}, fmt.Errorf("id %#04x: %w", id, vm.ErrUnboundNativeCall)
	}
	if len(args) != b.Arity {
		return vm.NativeResult{}, fmt.Errorf("%s: %d args, want %d: %w",
			b.Name, len(args), b.Arity, ErrBadArity)
	}
	return b.fn(t, args)
}

// TakeMapChange returns the transition requested during the tick, if
// any, and clears it.
func (h *Table) TakeMapChange() (MapChange, bool) {
	if h.pending == nil {
		return MapChange{}, false
	}
	mc := *h.pending
	h.pending = nil
	return mc, true
}

func (h *Table) bind(id uint16, name string, arity int, eff Effect,
	fn func(*vm.Thread, []int32) (vm.NativeResult, error)) {
	h.bindings[id] = Binding{Name: name, Arity: arity, Effect: eff, fn: fn}
}

// resolveDialogue fetches and renders a message, substituting the
// placeholder page when the bank or entry cannot be served.
func (h *Table) resolveDialogue(id container.RecordID, num int) ResolvedText {
	if h.cache == nil {
		h.log.Warningf("no asset cache, message %d of %08x dropped", num, uint32(id))
		return missingEntry()
	}
	hd, err := h.cache.Get(context.Background(), id)
	if err != nil {
		h.log.Warningf("dialogue bank %08x: %s", uint32(id), err.Error())
		return missingEntry()
	}
	defer hd.Release()
	bank, ok := hd.Asset().(*assets.DialogueTable)
	if !ok {
		h.log.Warningf("record %08x is not a dialogue bank", uint32(id))
		return missingEntry()
	}
	e, ok := bank.Entry(num)
	if !ok {
		h.log.Warningf("dialogue bank %08x has no entry %d", uint32(id), num)
		return missingEntry()
	}
	return ResolveEntry(e, h.world)
}

// s16 reinterprets a stack value as the scripts' 16-bit two's
// complement, for operands documented signed.
func s16(v int32) int { return int(int16(uint16(v))) }

func btoi(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
