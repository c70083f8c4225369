package host

import (
	"fmt"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// WindowID names a dialogue window. Scripts drive window zero; the id
// exists so menu collaborators can share the text surface.
type WindowID uint8

// Frontend receives the data-only requests scripts aim at the
// presentation side. Implementations must not call back into the
// scheduler; player reactions come back through the engine's inbound
// event path.
type Frontend interface {
	SetSprite(e vm.EntityID, frame int)
	PlayAnimation(e vm.EntityID, anim uint16)
	StopAnimation(e vm.EntityID)
	SetCamera(x, y int)
	SetMap(m container.RecordID)
	ShakeScreen(intensity, frames int)
	TintScreen(color uint16, frames int)
	ShowText(w WindowID, pages []string)
	ShowChoice(w WindowID, pages []string, options []string)
	CloseText(w WindowID)
	StartBattle(group uint16)
	EndBattle(outcome int32)
	BattleCommand(actor vm.EntityID, command int, target vm.EntityID)
	UseTech(actor vm.EntityID, tech uint16, target vm.EntityID)
	OpenShop(shop uint16)
}

// Audio receives cue requests. Cue payloads stay with the audio
// collaborator; the engine only routes ids.
type Audio interface {
	PlayCue(id uint16)
	StopCue(id uint16)
	CrossfadeCue(id uint16, frames int)
}

// NullFrontend discards every request. Headless runs and tests that
// only care about world effects use it.
type NullFrontend struct{}

func (NullFrontend) SetSprite(vm.EntityID, int)                  {}
func (NullFrontend) PlayAnimation(vm.EntityID, uint16)           {}
func (NullFrontend) StopAnimation(vm.EntityID)                   {}
func (NullFrontend) SetCamera(int, int)                          {}
func (NullFrontend) SetMap(container.RecordID)                   {}
func (NullFrontend) ShakeScreen(int, int)                        {}
func (NullFrontend) TintScreen(uint16, int)                      {}
func (NullFrontend) ShowText(WindowID, []string)                 {}
func (NullFrontend) ShowChoice(WindowID, []string, []string)     {}
func (NullFrontend) CloseText(WindowID)                          {}
func (NullFrontend) StartBattle(uint16)                          {}
func (NullFrontend) EndBattle(int32)                             {}
func (NullFrontend) BattleCommand(vm.EntityID, int, vm.EntityID) {}
func (NullFrontend) UseTech(vm.EntityID, uint16, vm.EntityID)    {}
func (NullFrontend) OpenShop(uint16)                             {}

// NullAudio discards cue requests.
type NullAudio struct{}

func (NullAudio) PlayCue(uint16)           {}
func (NullAudio) StopCue(uint16)           {}
func (NullAudio) CrossfadeCue(uint16, int) {}

// RecordingFrontend captures requests in call order, one formatted
// line per call, serving both the render and audio surfaces.
// Determinism tests run the same script twice and compare traces. Not
// safe for concurrent use; the tick loop is the only caller.
type RecordingFrontend struct {
	trace []string
}

func (r *RecordingFrontend) add(format string, args ...any) {
	r.trace = append(r.trace, fmt.Sprintf(format, args...))
}

// Trace returns a copy of the recorded lines.
func (r *RecordingFrontend) Trace() []string {
	out := make([]string, len(r.trace))
	copy(out, r.trace)
	return out
}

// Reset discards the recording.
func (r *RecordingFrontend) Reset() { r.trace = nil }

func (r *RecordingFrontend) SetSprite(e vm.EntityID, frame int) {
	r.add("SetSprite(%d, %d)", e, frame)
}

func (r *RecordingFrontend) PlayAnimation(e vm.EntityID, anim uint16) {
	r.add("PlayAnimation(%d, %d)", e, anim)
}

func (r *RecordingFrontend) StopAnimation(e vm.EntityID) {
	r.add("StopAnimation(%d)", e)
}

func (r *RecordingFrontend) SetCamera(x, y int) {
	r.add("SetCamera(%d, %d)", x, y)
}

func (r *RecordingFrontend) SetMap(m container.RecordID) {
	r.add("SetMap(%08x)", uint32(m))
}

func (r *RecordingFrontend) ShakeScreen(intensity, frames int) {
	r.add("ShakeScreen(%d, %d)", intensity, frames)
}

func (r *RecordingFrontend) TintScreen(color uint16, frames int) {
	r.add("TintScreen(%#04x, %d)", color, frames)
}

func (r *RecordingFrontend) ShowText(w WindowID, pages []string) {
	r.add("ShowText(%d, %q)", w, pages)
}

func (r *RecordingFrontend) ShowChoice(w WindowID, pages []string, options []string) {
	r.add("ShowChoice(%d, %q, %q)", w, pages, options)
}

func (r *RecordingFrontend) CloseText(w WindowID) {
	r.add("CloseText(%d)", w)
}

func (r *RecordingFrontend) StartBattle(group uint16) {
	r.add("StartBattle(%d)", group)
}

func (r *RecordingFrontend) EndBattle(outcome int32) {
	r.add("EndBattle(%d)", outcome)
}

func (r *RecordingFrontend) BattleCommand(actor vm.EntityID, command int, target vm.EntityID) {
	r.add("BattleCommand(%d, %d, %d)", actor, command, target)
}

func (r *RecordingFrontend) UseTech(actor vm.EntityID, tech uint16, target vm.EntityID) {
	r.add("UseTech(%d, %d, %d)", actor, tech, target)
}

func (r *RecordingFrontend) OpenShop(shop uint16) {
	r.add("OpenShop(%d)", shop)
}

func (r *RecordingFrontend) PlayCue(id uint16) {
	r.add("PlayCue(%d)", id)
}

func (r *RecordingFrontend) StopCue(id uint16) {
	r.add("StopCue(%d)", id)
}

func (r *RecordingFrontend) CrossfadeCue(id uint16, frames int) {
	r.add("CrossfadeCue(%d, %d)", id, frames)
}
