package host

import (
	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// ---------------------------------------------------------------------------
// Entity control
// ---------------------------------------------------------------------------

func (h *Table) registerEntityCalls() {
	h.bind(vm.NativeMoveEntity, "MoveEntity", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.MoveEntity(vm.EntityID(a[0]), s16(a[1]), s16(a[2]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeWarpEntity, "WarpEntity", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.WarpEntity(vm.EntityID(a[0]), int(a[1]), int(a[2]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeSetFacing, "SetFacing", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.SetFacing(vm.EntityID(a[0]), uint8(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeSetSpeed, "SetSpeed", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.SetSpeed(vm.EntityID(a[0]), uint8(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativePlayAnim, "PlayAnim", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.PlayAnimation(vm.EntityID(a[0]), uint16(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeStopAnim, "StopAnim", 1, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.StopAnimation(vm.EntityID(a[0]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeSetSprite, "SetSprite", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.SetSprite(vm.EntityID(a[0]), int(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeReleaseEntity, "ReleaseEntity", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			if h.sched == nil {
				return vm.NativeResult{}, errNoScheduler
			}
			e := vm.EntityID(a[0])
			killed := h.sched.KillEntityThreads(e)
			h.world.EntityIdle(e)
			return vm.NativeResult{Value: int32(killed)}, nil
		})
}

// ---------------------------------------------------------------------------
// Camera and map
// ---------------------------------------------------------------------------

func (h *Table) registerSceneCalls() {
	h.bind(vm.NativeSetCamera, "SetCamera", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.SetCamera(int(a[0]), int(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeChangeMap, "ChangeMap", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			mc := MapChange{Map: container.RecordID(uint32(a[0])), X: int(a[1]), Y: int(a[2])}
			if h.pending != nil {
				h.log.Debugf("map change to %08x replaces pending %08x",
					uint32(mc.Map), uint32(h.pending.Map))
			}
			h.pending = &mc
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeShakeScreen, "ShakeScreen", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.ShakeScreen(int(a[0]), int(a[1]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeTintScreen, "TintScreen", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.TintScreen(uint16(a[0]), int(a[1]))
			return vm.NativeResult{}, nil
		})
}

// ---------------------------------------------------------------------------
// Dialogue
// ---------------------------------------------------------------------------

func (h *Table) registerDialogueCalls() {
	h.bind(vm.NativeShowDialogue, "ShowDialogue", 2, EffectBlocking,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			txt := h.resolveDialogue(container.RecordID(uint32(a[0])), int(a[1]))
			h.front.ShowText(0, txt.Pages)
			return vm.NativeResult{Wait: &vm.Wait{Reason: vm.WaitDialogue}}, nil
		})
	h.bind(vm.NativeShowChoice, "ShowChoice", 2, EffectBlocking,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			txt := h.resolveDialogue(container.RecordID(uint32(a[0])), int(a[1]))
			h.front.ShowChoice(0, txt.Pages, txt.Options)
			return vm.NativeResult{Wait: &vm.Wait{Reason: vm.WaitChoice}}, nil
		})
	h.bind(vm.NativeCloseDialogue, "CloseDialogue", 0, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			if h.sched == nil {
				return vm.NativeResult{}, errNoScheduler
			}
			h.front.CloseText(0)
			h.sched.DeliverDialogueClosed()
			return vm.NativeResult{}, nil
		})
}

// ---------------------------------------------------------------------------
// World values
// ---------------------------------------------------------------------------

func (h *Table) registerValueCalls() {
	h.bind(vm.NativeRandomRange, "RandomRange", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: h.world.Rand(a[0], a[1])}, nil
		})
	h.bind(vm.NativePlayTimeSeconds, "PlayTimeSeconds", 0, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: h.world.PlayTimeSeconds()}, nil
		})
}

// ---------------------------------------------------------------------------
// Party and inventory
// ---------------------------------------------------------------------------

func (h *Table) registerPartyCalls() {
	h.bind(vm.NativeAddItem, "AddItem", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			added := h.world.AddItem(uint16(a[0]), int(a[1]))
			return vm.NativeResult{Value: int32(added)}, nil
		})
	h.bind(vm.NativeRemoveItem, "RemoveItem", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			removed := h.world.RemoveItem(uint16(a[0]), int(a[1]))
			return vm.NativeResult{Value: int32(removed)}, nil
		})
	h.bind(vm.NativeHasItem, "HasItem", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: btoi(h.world.HasItem(uint16(a[0])))}, nil
		})
	h.bind(vm.NativeAddGold, "AddGold", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.AddGold(a[0])
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeAddSilverPoints, "AddSilverPoints", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.AddSilverPoints(a[0])
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeHealParty, "HealParty", 0, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.HealParty()
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeAddPartyMember, "AddPartyMember", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: btoi(h.world.AddPartyMember(uint8(a[0])))}, nil
		})
	h.bind(vm.NativeRemovePartyMember, "RemovePartyMember", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: btoi(h.world.RemovePartyMember(uint8(a[0])))}, nil
		})
}

// ---------------------------------------------------------------------------
// Battle
// ---------------------------------------------------------------------------

func (h *Table) registerBattleCalls() {
	h.bind(vm.NativeStartBattle, "StartBattle", 1, EffectBlocking,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.StartBattle(uint16(a[0]))
			return vm.NativeResult{Wait: &vm.Wait{Reason: vm.WaitBattle}}, nil
		})
	h.bind(vm.NativeBattleCommand, "BattleCommand", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			actor := vm.EntityID(a[0])
			h.front.BattleCommand(actor, int(a[1]), vm.EntityID(a[2]))
			h.world.MarkMoved(actor)
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeUseTech, "UseTech", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			actor := vm.EntityID(a[0])
			h.front.UseTech(actor, uint16(a[1]), vm.EntityID(a[2]))
			h.world.MarkMoved(actor)
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeCheckStatus, "CheckStatus", 3, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			on := h.world.CheckStatus(vm.EntityID(a[0]), uint8(a[1]), uint8(a[2]))
			return vm.NativeResult{Value: btoi(on)}, nil
		})
	h.bind(vm.NativeEntityDead, "EntityDead", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			cur, _ := h.world.BattleHP(vm.EntityID(a[0]))
			return vm.NativeResult{Value: btoi(cur <= 0)}, nil
		})
	h.bind(vm.NativeLivingEnemies, "LivingEnemies", 0, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: int32(h.world.LivingEnemies())}, nil
		})
	h.bind(vm.NativeDealDamage, "DealDamage", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.DealDamage(vm.EntityID(a[0]), a[1])
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeEndBattle, "EndBattle", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			if h.sched == nil {
				return vm.NativeResult{}, errNoScheduler
			}
			h.front.EndBattle(a[0])
			h.sched.DeliverBattleEnd(a[0])
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeHPRatioBelow, "HPRatioBelow", 2, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			cur, max := h.world.BattleHP(vm.EntityID(a[0]))
			if max <= 0 {
				return vm.NativeResult{}, nil
			}
			below := int32(cur)*100 < int32(max)*a[1]
			return vm.NativeResult{Value: btoi(below)}, nil
		})
	h.bind(vm.NativeBattleMoved, "BattleMoved", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Value: btoi(h.world.Moved(vm.EntityID(a[0])))}, nil
		})
}

// ---------------------------------------------------------------------------
// Audio
// ---------------------------------------------------------------------------

func (h *Table) registerAudioCalls() {
	h.bind(vm.NativePlayCue, "PlayCue", 1, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.audio.PlayCue(uint16(a[0]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeStopCue, "StopCue", 1, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.audio.StopCue(uint16(a[0]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeCrossfadeCue, "CrossfadeCue", 2, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.audio.CrossfadeCue(uint16(a[0]), int(a[1]))
			return vm.NativeResult{}, nil
		})
}

// ---------------------------------------------------------------------------
// System
// ---------------------------------------------------------------------------

func (h *Table) registerSystemCalls() {
	h.bind(vm.NativeWaitConfirm, "WaitConfirm", 0, EffectBlocking,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			return vm.NativeResult{Wait: &vm.Wait{Reason: vm.WaitInput, Mask: InputConfirm}}, nil
		})
	h.bind(vm.NativeOpenShop, "OpenShop", 1, EffectRender,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.front.OpenShop(uint16(a[0]))
			return vm.NativeResult{}, nil
		})
	h.bind(vm.NativeSaveAllowed, "SaveAllowed", 1, EffectWorld,
		func(_ *vm.Thread, a []int32) (vm.NativeResult, error) {
			h.world.SetSaveAllowed(a[0] != 0)
			return vm.NativeResult{}, nil
		})
}
