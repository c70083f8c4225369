package vm

// Native call ids, as referenced by NATIVE instruction operands. The id
// space is part of the bytecode contract; the host binds an
// implementation to each id at boot. Grouped by the high byte.
const (
	// Entity control
	NativeMoveEntity    uint16 = 0x0101 // entity, dx, dy
	NativeWarpEntity    uint16 = 0x0102 // entity, x, y
	NativeSetFacing     uint16 = 0x0103 // entity, facing
	NativeSetSpeed      uint16 = 0x0104 // entity, speed
	NativePlayAnim      uint16 = 0x0105 // entity, anim id
	NativeStopAnim      uint16 = 0x0106 // entity
	NativeSetSprite     uint16 = 0x0107 // entity, frame
	NativeReleaseEntity uint16 = 0x0108 // entity

	// Camera and map
	NativeSetCamera   uint16 = 0x0201 // x, y
	NativeChangeMap   uint16 = 0x0202 // map record, x, y (applies at end of tick)
	NativeShakeScreen uint16 = 0x0203 // intensity, frames
	NativeTintScreen  uint16 = 0x0204 // color, frames

	// Dialogue
	NativeShowDialogue  uint16 = 0x0301 // table record, entry id (blocks)
	NativeShowChoice    uint16 = 0x0302 // table record, entry id (blocks, pushes selection)
	NativeCloseDialogue uint16 = 0x0303

	// World values
	NativeRandomRange     uint16 = 0x0401 // lo, hi (pushes value in [lo,hi])
	NativePlayTimeSeconds uint16 = 0x0402

	// Party and inventory
	NativeAddItem           uint16 = 0x0501 // item, qty
	NativeRemoveItem        uint16 = 0x0502 // item, qty
	NativeHasItem           uint16 = 0x0503 // item (pushes 0/1)
	NativeAddGold           uint16 = 0x0504 // amount (signed)
	NativeAddSilverPoints   uint16 = 0x0505 // amount (signed)
	NativeHealParty         uint16 = 0x0506
	NativeAddPartyMember    uint16 = 0x0507 // member
	NativeRemovePartyMember uint16 = 0x0508 // member

	// Battle
	NativeStartBattle   uint16 = 0x0601 // group (blocks, pushes outcome)
	NativeBattleCommand uint16 = 0x0602 // actor, command, target
	NativeUseTech       uint16 = 0x0603 // actor, tech, target
	NativeCheckStatus   uint16 = 0x0604 // target, offset, bits (pushes 0/1)
	NativeEntityDead    uint16 = 0x0605 // entity (pushes 0/1)
	NativeLivingEnemies uint16 = 0x0606 // (pushes count)
	NativeDealDamage    uint16 = 0x0607 // target, amount
	NativeEndBattle     uint16 = 0x0608 // outcome
	NativeHPRatioBelow  uint16 = 0x0609 // target, percent (pushes 0/1)
	NativeBattleMoved   uint16 = 0x060A // target (pushes 0/1)

	// Audio
	NativePlayCue      uint16 = 0x0701 // cue
	NativeStopCue      uint16 = 0x0702 // cue
	NativeCrossfadeCue uint16 = 0x0703 // cue, frames

	// System
	NativeWaitConfirm uint16 = 0x0801 // (blocks)
	NativeOpenShop    uint16 = 0x0802 // shop
	NativeSaveAllowed uint16 = 0x0803 // allowed 0/1
)
