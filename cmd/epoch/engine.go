package main

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/epochengine/epoch/assets"
	"github.com/epochengine/epoch/config"
	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/host"
	"github.com/epochengine/epoch/vm"
	"github.com/epochengine/epoch/world"
)

// A fresh game enters here; saves resume wherever they were taken.
const bootMapPath = "maps/boot.map"

// Engine owns the stack for one session: the opened archive, the
// decode cache, the native table, the scheduler and the world, wired
// in the two-phase order the packages expose. It is single-threaded
// like the scheduler under it.
type Engine struct {
	profile *config.Profile
	pkg     *container.Package
	cache   *assets.Cache
	table   *host.Table
	sched   *vm.Scheduler
	state   *world.State
	front   host.Frontend
	log     commonlog.Logger

	// autoplay stands in for the player and the battle presentation:
	// waits only an outside surface can end resolve with the
	// canonical response, so scripts run to completion headless.
	autoplay bool

	mapHandle    *assets.Handle
	scriptHandle *assets.Handle
	cur          *assets.Map
	prog         *vm.Program
}

type engineOptions struct {
	Front    host.Frontend
	Audio    host.Audio
	Autoplay bool
}

func newEngine(cfg *config.Config, profile *config.Profile, state *world.State, opts engineOptions) (*Engine, error) {
	pkg, err := openPackage(cfg)
	if err != nil {
		return nil, err
	}

	front := opts.Front
	if front == nil {
		front = host.NullFrontend{}
	}
	table, err := host.NewTable(host.Options{World: state, Front: front, Audio: opts.Audio})
	if err != nil {
		return nil, err
	}
	cache := assets.NewCache(pkg, assets.CacheOptions{Budget: cfg.CacheBudget(), Natives: table})
	table.AttachAssets(cache)

	policies := profile.PolicyTable()
	sched := vm.NewScheduler(vm.Options{
		Memory:     state,
		Dispatcher: table,
		Policies:   &policies,
		CallDepth:  cfg.Engine.CallStackDepth,
	})
	table.AttachScheduler(sched)

	state.SetTickHz(profile.EffectiveHz(cfg.Engine.TickHz))

	return &Engine{
		profile:  profile,
		pkg:      pkg,
		cache:    cache,
		table:    table,
		sched:    sched,
		state:    state,
		front:    front,
		log:      commonlog.GetLogger("epoch.engine"),
		autoplay: opts.Autoplay,
	}, nil
}

func openPackage(cfg *config.Config) (*container.Package, error) {
	if exe := cfg.ExecutablePath(); exe != "" {
		key, err := container.KeyFromExecutable(exe)
		if err != nil {
			return nil, err
		}
		return container.OpenWithKey(cfg.PackagePath(), key)
	}
	return container.Open(cfg.PackagePath())
}

// bootTarget picks where a run starts: a loaded save resumes in place,
// a fresh game enters the default boot map.
func bootTarget(pkg *container.Package, state *world.State) (container.RecordID, int, int, error) {
	if id, x, y := state.Location(); id != 0 {
		return id, x, y, nil
	}
	id, ok := pkg.Lookup(bootMapPath)
	if !ok {
		return 0, 0, 0, fmt.Errorf("archive has no %s, cannot start a new game", bootMapPath)
	}
	return id, 0, 0, nil
}

// EnterMap tears down the scene and brings up the named map: its
// script program is decoded and verified, the location updates, and
// the map's startup triggers launch. They first run on the next tick.
// On error the current scene is left standing.
func (e *Engine) EnterMap(id container.RecordID, x, y int) error {
	mh, err := e.cache.Get(context.Background(), id)
	if err != nil {
		return fmt.Errorf("entering map %08x: %w", uint32(id), err)
	}
	m, ok := mh.Asset().(*assets.Map)
	if !ok {
		kind := mh.Asset().AssetKind()
		mh.Release()
		return fmt.Errorf("entering map %08x: record is %s, not a map", uint32(id), kind)
	}

	var sh *assets.Handle
	var prog *vm.Program
	if m.ScriptID != 0 {
		sh, err = e.cache.Get(context.Background(), m.ScriptID)
		if err != nil {
			mh.Release()
			return fmt.Errorf("map %08x script: %w", uint32(id), err)
		}
		sc, ok := sh.Asset().(*assets.Script)
		if !ok {
			kind := sh.Asset().AssetKind()
			sh.Release()
			mh.Release()
			return fmt.Errorf("map %08x script %08x: record is %s, not a script",
				uint32(id), uint32(m.ScriptID), kind)
		}
		prog = sc.Program
	}

	e.sched.KillAll()
	e.state.ClearEntities()
	e.releaseScene()
	e.mapHandle, e.scriptHandle = mh, sh
	e.cur, e.prog = m, prog

	path := e.pathOf(id)
	e.state.SetLocation(id, x, y, path)
	e.front.SetMap(id)
	e.log.Infof("entered %s (%dx%d, %d triggers)", path, m.Width, m.Height, len(m.Triggers))

	if prog != nil {
		for i := range m.Triggers {
			if m.Triggers[i].Kind == vm.TriggerStartup {
				e.startTrigger(&m.Triggers[i])
			}
		}
	}
	return nil
}

// Activate fires the activate trigger covering a cell, as the player
// examining it would. Reports whether a trigger was there.
func (e *Engine) Activate(x, y int) bool { return e.fireAt(x, y, vm.TriggerActivate) }

// Touch fires the touch trigger covering a cell, as the player
// stepping onto it would.
func (e *Engine) Touch(x, y int) bool { return e.fireAt(x, y, vm.TriggerTouch) }

func (e *Engine) fireAt(x, y int, kind vm.TriggerKind) bool {
	if e.cur == nil || e.prog == nil {
		return false
	}
	tr, ok := e.cur.TriggerAt(x, y, kind)
	if !ok {
		return false
	}
	e.startTrigger(tr)
	return true
}

// startTrigger launches a map trigger's script entry. The compat
// profile may pin a per-map policy for the trigger; otherwise the
// trigger's own policy field rides along.
func (e *Engine) startTrigger(tr *assets.Trigger) {
	pol := tr.Policy
	if over, ok := e.profile.TriggerPolicy(e.state.LocationName(), tr.ID); ok {
		pol = over
	}
	if _, err := e.sched.Start(e.prog, tr.ScriptEntry, vm.StartOptions{Policy: pol}); err != nil {
		e.log.Errorf("trigger %d entry %d: %s", tr.ID, tr.ScriptEntry, err.Error())
	}
}

// Tick advances the engine one frame: waiters wake, runnable threads
// run, and a requested map change applies after everything else.
func (e *Engine) Tick(input uint8) {
	if e.autoplay {
		input |= e.syntheticInput()
	}
	e.state.AdvanceTick()
	e.sched.Tick(input)
	if e.autoplay {
		e.autoplayStep()
	}
	if mc, ok := e.table.TakeMapChange(); ok {
		if err := e.EnterMap(mc.Map, mc.X, mc.Y); err != nil {
			e.log.Errorf("map change: %s", err.Error())
		}
	}
}

// Run advances up to the given number of ticks, stopping early once no
// thread remains. Returns the ticks actually run.
func (e *Engine) Run(ticks int) int {
	for i := 0; i < ticks; i++ {
		e.Tick(0)
		if e.sched.Live() == 0 {
			return i + 1
		}
	}
	return ticks
}

// syntheticInput presses whatever the input waiters are asking for.
func (e *Engine) syntheticInput() uint8 {
	var in uint8
	for _, ts := range e.sched.Snapshot() {
		if ts.State != vm.ThreadSuspended || ts.Wait != vm.WaitInput {
			continue
		}
		t, ok := e.sched.Thread(ts.ID)
		if !ok {
			continue
		}
		if mask := t.Waiting().Mask; mask != 0 {
			in |= mask
		} else {
			in |= host.InputConfirm
		}
	}
	return in
}

// autoplayStep resolves the waits that only an outside surface ends:
// animations complete, text windows close, the first choice wins, and
// battles end in victory.
func (e *Engine) autoplayStep() {
	var closedText, pickedChoice, endedBattle bool
	for _, ts := range e.sched.Snapshot() {
		if ts.State != vm.ThreadSuspended {
			continue
		}
		switch ts.Wait {
		case vm.WaitAnim:
			if t, ok := e.sched.Thread(ts.ID); ok {
				e.sched.DeliverAnimDone(t.Waiting().Entity)
			}
		case vm.WaitDialogue:
			if !closedText {
				closedText = true
				e.front.CloseText(0)
				e.sched.DeliverDialogueClosed()
			}
		case vm.WaitChoice:
			if !pickedChoice {
				pickedChoice = true
				e.sched.DeliverChoice(0)
			}
		case vm.WaitBattle:
			if !endedBattle {
				endedBattle = true
				e.front.EndBattle(1)
				e.sched.DeliverBattleEnd(1)
			}
		}
	}
}

// pathOf recovers the archive path for a record id, for location
// display and profile lookups. Falls back to the hex id.
func (e *Engine) pathOf(id container.RecordID) string {
	for _, p := range e.pkg.Paths() {
		if rid, ok := e.pkg.Lookup(p); ok && rid == id {
			return p
		}
	}
	return fmt.Sprintf("%08x", uint32(id))
}

func (e *Engine) releaseScene() {
	if e.scriptHandle != nil {
		e.scriptHandle.Release()
		e.scriptHandle = nil
	}
	if e.mapHandle != nil {
		e.mapHandle.Release()
		e.mapHandle = nil
	}
	e.cur, e.prog = nil, nil
}

// Close stops every thread and drops the scene's asset references.
func (e *Engine) Close() {
	e.sched.KillAll()
	e.releaseScene()
}
