package vm

import (
	"fmt"
	"sort"

	"github.com/tliron/commonlog"
)

// DefaultTickBudget is the instruction allowance per thread per tick.
// A thread that spins past it is forcibly yielded until the next tick.
const DefaultTickBudget = 4096

// PolicyTable supplies the policy applied when a script entry declares
// PolicyDefault, indexed by trigger kind. Compat profiles may override
// the stock table.
type PolicyTable [3]Policy

// DefaultPolicies returns the stock resolution table: activation
// requests queue behind a busy entity, startup and touch requests are
// dropped.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		TriggerStartup:  PolicyDrop,
		TriggerActivate: PolicyQueue,
		TriggerTouch:    PolicyDrop,
	}
}

// Resolve returns the effective policy for an entry of kind k that
// declared the given policy.
func (pt PolicyTable) Resolve(k TriggerKind, declared Policy) Policy {
	if declared != PolicyDefault {
		return declared
	}
	if int(k) < len(pt) {
		return pt[k]
	}
	return PolicyDrop
}

// Options configures a Scheduler. Memory must be non-nil. A nil
// Dispatcher faults any thread that reaches a NATIVE instruction.
type Options struct {
	Memory     Memory
	Dispatcher Dispatcher
	Policies   *PolicyTable // nil uses DefaultPolicies
	TickBudget int          // <=0 uses DefaultTickBudget
	CallDepth  int          // <=0 uses MaxCallDepth; clamped to MaxCallDepth
	OnFault    func(*Thread, *Fault)
}

// StartOptions carries the scene-side context of a thread start.
type StartOptions struct {
	Entity     EntityID
	OwnsEntity bool
	Priority   uint8
	// Policy overrides the entry's declared policy when not
	// PolicyDefault. Map triggers carry their own policy field,
	// which takes precedence over the script entry's.
	Policy Policy
}

type queuedStart struct {
	prog  *Program
	entry uint16
	opts  StartOptions
}

// Scheduler drives cooperative script threads over fixed ticks. It is
// not safe for concurrent use; the engine calls it from the tick loop
// only. A tick wakes eligible waiters, runs every runnable thread once
// in (creation sequence, priority) order, and retires finished ones.
// Threads started or spawned during a tick first run on the next one.
type Scheduler struct {
	mem       Memory
	disp      Dispatcher
	log       commonlog.Logger
	policies  PolicyTable
	budget    int
	callDepth int
	onFault   func(*Thread, *Fault)

	threads map[ThreadID]*Thread
	owner   map[EntityID]*Thread
	queue   map[EntityID][]queuedStart
	nextID  ThreadID
	nextSeq uint64
	frame   uint64
}

// NewScheduler builds a scheduler over the given memory and host
// dispatcher.
func NewScheduler(opts Options) *Scheduler {
	policies := DefaultPolicies()
	if opts.Policies != nil {
		policies = *opts.Policies
	}
	budget := opts.TickBudget
	if budget <= 0 {
		budget = DefaultTickBudget
	}
	depth := opts.CallDepth
	if depth <= 0 || depth > MaxCallDepth {
		depth = MaxCallDepth
	}
	return &Scheduler{
		mem:       opts.Memory,
		disp:      opts.Dispatcher,
		log:       commonlog.GetLogger("epoch.vm"),
		policies:  policies,
		budget:    budget,
		callDepth: depth,
		onFault:   opts.OnFault,
		threads:   make(map[ThreadID]*Thread),
		owner:     make(map[EntityID]*Thread),
		queue:     make(map[EntityID][]queuedStart),
	}
}

// Frame returns the number of completed and in-progress ticks.
func (s *Scheduler) Frame() uint64 { return s.frame }

// Live returns the number of threads that have not finished.
func (s *Scheduler) Live() int { return len(s.threads) }

// Thread looks up a live thread.
func (s *Scheduler) Thread(id ThreadID) (*Thread, bool) {
	t, ok := s.threads[id]
	return t, ok
}

// Quiescent reports whether only ambient startup scripts remain. Save
// points require it: a save taken mid-cutscene would lose the threads.
func (s *Scheduler) Quiescent() bool {
	for _, t := range s.threads {
		if t.trigger != TriggerStartup {
			return false
		}
	}
	return true
}

// Start launches prog's entry on a new thread, subject to the entity
// exclusivity rule: when opts.OwnsEntity is set and the entity already
// has an owner, the resolved policy decides between queueing the start
// and dropping it. The returned id is zero when no thread was started
// now (queued or dropped).
func (s *Scheduler) Start(prog *Program, entry uint16, opts StartOptions) (ThreadID, error) {
	if prog == nil {
		return 0, fmt.Errorf("start entry %d: %w", entry, ErrInvalidProgram)
	}
	ent, ok := prog.Entry(entry)
	if !ok {
		return 0, fmt.Errorf("start: program %08x has no entry %d: %w",
			uint32(prog.ID), entry, ErrInvalidProgram)
	}
	if opts.OwnsEntity {
		if _, busy := s.owner[opts.Entity]; busy {
			declared := opts.Policy
			if declared == PolicyDefault {
				declared = ent.Policy
			}
			switch s.policies.Resolve(ent.Trigger, declared) {
			case PolicyQueue:
				s.queue[opts.Entity] = append(s.queue[opts.Entity],
					queuedStart{prog: prog, entry: entry, opts: opts})
				s.log.Debugf("entity %d busy, queued entry %d of %08x",
					opts.Entity, entry, uint32(prog.ID))
			default:
				s.log.Debugf("entity %d busy, dropped entry %d of %08x",
					opts.Entity, entry, uint32(prog.ID))
			}
			return 0, nil
		}
	}
	t := s.newThread(prog, entry, int(ent.Offset), ent.Trigger, opts)
	return t.id, nil
}

func (s *Scheduler) newThread(prog *Program, entry uint16, pc int, trigger TriggerKind, opts StartOptions) *Thread {
	s.nextID++
	s.nextSeq++
	t := &Thread{
		id:      s.nextID,
		program: prog,
		entry:   entry,
		trigger: trigger,
		entity:  opts.Entity,
		owns:    opts.OwnsEntity,
		prio:    opts.Priority,
		seq:     s.nextSeq,
		state:   ThreadReady,
		pc:      pc,
	}
	s.threads[t.id] = t
	if t.owns {
		s.owner[t.entity] = t
	}
	return t
}

// spawnChild creates the sub-thread for a SPAWN instruction. The child
// shares the parent's program and priority, owns no entity, and keeps
// the parent's trigger kind so a cutscene's helpers block saving the
// way the cutscene itself does. It first runs on the next tick.
func (s *Scheduler) spawnChild(parent *Thread, entry uint16) ThreadID {
	ent, ok := parent.program.Entry(entry)
	if !ok {
		return 0
	}
	t := s.newThread(parent.program, entry, int(ent.Offset), parent.trigger, StartOptions{
		Priority: parent.prio,
	})
	return t.id
}

// runOrder snapshots the live threads in deterministic execution
// order. Threads created after the snapshot wait for the next tick.
func (s *Scheduler) runOrder() []*Thread {
	order := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		order = append(order, t)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].seq != order[j].seq {
			return order[i].seq < order[j].seq
		}
		return order[i].prio < order[j].prio
	})
	return order
}

// Tick advances the machinery by one frame: pressed input is visible to
// waiters during this tick only, frame waits count down, runnable
// threads execute once in order, and finished threads retire.
func (s *Scheduler) Tick(input uint8) {
	s.frame++
	order := s.runOrder()

	// Wake phase.
	for _, t := range order {
		if t.state != ThreadSuspended {
			continue
		}
		switch t.wait.Reason {
		case WaitFrames:
			if t.wait.Frames <= 1 {
				t.resume(0)
			} else {
				t.wait.Frames--
			}
		case WaitInput:
			if input == 0 {
				break
			}
			matched := input & t.wait.Mask
			if t.wait.Mask == 0 {
				matched = input
			}
			if matched != 0 {
				t.resume(int32(matched))
			}
		}
	}

	// Run phase. A thread that finishes wakes its waiters at once, so
	// a later-ordered waiter resumes within the same tick.
	for _, t := range order {
		if t.state != ThreadReady {
			continue
		}
		s.exec(t)
		if t.state.Done() {
			if t.state == ThreadFaulted {
				s.log.Errorf("%s", t.fault.Error())
				if s.onFault != nil {
					s.onFault(t, t.fault)
				}
			}
			s.finish(t)
		}
	}
}

// finish retires a done thread: it leaves the live set, its entity is
// released, the entity's queued start (if any) launches, and threads
// waiting on it resume. Idempotent.
func (s *Scheduler) finish(t *Thread) {
	if _, ok := s.threads[t.id]; !ok {
		return
	}
	delete(s.threads, t.id)
	if t.owns && s.owner[t.entity] == t {
		delete(s.owner, t.entity)
		if q := s.queue[t.entity]; len(q) > 0 {
			next := q[0]
			if len(q) == 1 {
				delete(s.queue, t.entity)
			} else {
				s.queue[t.entity] = q[1:]
			}
			if _, err := s.Start(next.prog, next.entry, next.opts); err != nil {
				s.log.Errorf("queued start failed: %s", err.Error())
			}
		}
	}
	for _, w := range s.runOrder() {
		if w.state == ThreadSuspended && w.wait.Reason == WaitThread && w.wait.Thread == t.id {
			w.resume(0)
		}
	}
}

// KillEntityThreads terminates the thread owning the entity and drops
// its queued starts. Scene code calls it when an entity leaves the
// map. Returns the number of threads killed.
func (s *Scheduler) KillEntityThreads(e EntityID) int {
	delete(s.queue, e)
	t, ok := s.owner[e]
	if !ok {
		return 0
	}
	t.state = ThreadTerminated
	s.finish(t)
	return 1
}

// KillAll terminates every thread and clears every queue. The engine
// calls it on scene transitions before starting the next map's
// scripts.
func (s *Scheduler) KillAll() {
	s.queue = make(map[EntityID][]queuedStart)
	order := s.runOrder()
	for _, t := range order {
		t.state = ThreadTerminated
	}
	for _, t := range order {
		s.finish(t)
	}
}

// ---------------------------------------------------------------------------
// Event delivery
// ---------------------------------------------------------------------------

// DeliverAnimDone resumes threads waiting on the entity's animation.
func (s *Scheduler) DeliverAnimDone(e EntityID) {
	for _, t := range s.runOrder() {
		if t.state == ThreadSuspended && t.wait.Reason == WaitAnim && t.wait.Entity == e {
			t.resume(0)
		}
	}
}

// DeliverDialogueClosed resumes threads blocked on the dialogue
// window.
func (s *Scheduler) DeliverDialogueClosed() {
	s.deliver(WaitDialogue, 0)
}

// DeliverChoice resumes threads blocked on a choice, which receive the
// selected option index.
func (s *Scheduler) DeliverChoice(selection int32) {
	s.deliver(WaitChoice, selection)
}

// DeliverBattleEnd resumes threads blocked on a battle, which receive
// the outcome code.
func (s *Scheduler) DeliverBattleEnd(outcome int32) {
	s.deliver(WaitBattle, outcome)
}

func (s *Scheduler) deliver(reason WaitReason, wake int32) {
	for _, t := range s.runOrder() {
		if t.state == ThreadSuspended && t.wait.Reason == reason {
			t.resume(wake)
		}
	}
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// ThreadSnapshot is a point-in-time view of one thread, used by the
// debug surface and determinism tests.
type ThreadSnapshot struct {
	ID         ThreadID
	Entry      uint16
	State      ThreadState
	Wait       WaitReason
	PC         int
	SP         int
	Depth      int
	Entity     EntityID
	OwnsEntity bool
}

// Snapshot returns the live threads ordered by id.
func (s *Scheduler) Snapshot() []ThreadSnapshot {
	out := make([]ThreadSnapshot, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, ThreadSnapshot{
			ID:         t.id,
			Entry:      t.entry,
			State:      t.state,
			Wait:       t.wait.Reason,
			PC:         t.pc,
			SP:         t.sp,
			Depth:      len(t.calls),
			Entity:     t.entity,
			OwnsEntity: t.owns,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
