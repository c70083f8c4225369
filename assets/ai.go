package assets

import (
	"fmt"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// Battle AI wire structure: two sections (action selection, then
// reaction), each a run of entries. An entry is up to four condition
// records, an 0xFE, a run of action records, and another 0xFE; 0xFF
// closes a section. Records are an op byte plus three operand bytes.
const (
	aiEndOfList    = 0xFE
	aiEndOfSection = 0xFF
	maxAIConds     = 4
)

// Condition ops.
const (
	AICondAlways        uint8 = 0x00
	AICondHPBelowHalf   uint8 = 0x01 // a = target
	AICondStatus        uint8 = 0x02 // a = target, b = offset, c = bits
	AICondMoved         uint8 = 0x03 // a = target
	AICondDead          uint8 = 0x04 // a = target
	AICondEnemiesAtMost uint8 = 0x05 // a = count
)

// Action ops.
const (
	AIActAttack uint8 = 0x00 // a = target mode
	AIActTech   uint8 = 0x01 // a = tech, b = target mode
	AIActDefend uint8 = 0x02
	AIActFlee   uint8 = 0x03
	AIActWait   uint8 = 0x04
)

// Compiled entry ids: the battle system starts one or the other.
const (
	AIEntrySelect   uint16 = 0
	AIEntryReaction uint16 = 1
)

// AIRecord is one condition or action.
type AIRecord struct {
	Op      uint8
	A, B, C uint8
}

// AIEntry is one rule: all conditions must pass for the actions to run.
type AIEntry struct {
	Conditions []AIRecord
	Actions    []AIRecord
}

// BattleAI is a decoded enemy behavior block.
type BattleAI struct {
	ID        container.RecordID
	Selection []AIEntry // consulted when the enemy acts
	Reaction  []AIEntry // consulted when the enemy is acted upon
}

func (ai *BattleAI) AssetKind() container.Kind { return container.KindBattleAI }

func (ai *BattleAI) MemSize() int {
	n := 64
	for _, sec := range [][]AIEntry{ai.Selection, ai.Reaction} {
		for _, e := range sec {
			n += 24 + len(e.Conditions)*4 + len(e.Actions)*4
		}
	}
	return n
}

// DecodeBattleAI decodes an enemy AI record.
func DecodeBattleAI(rec *container.AssetRecord) (*BattleAI, error) {
	r := newReader(rec.Data)
	ai := &BattleAI{ID: rec.ID}

	var err error
	if ai.Selection, err = parseAISection(r, rec, "selection"); err != nil {
		return nil, err
	}
	if ai.Reaction, err = parseAISection(r, rec, "reaction"); err != nil {
		return nil, err
	}
	return ai, nil
}

func parseAISection(r *reader, rec *container.AssetRecord, name string) ([]AIEntry, error) {
	var entries []AIEntry
	for {
		b, err := r.u8()
		if err != nil {
			return nil, malformedErr(rec, err, "%s section", name)
		}
		if b == aiEndOfSection {
			return entries, nil
		}

		var e AIEntry
		// Condition list: first op byte already consumed.
		for b != aiEndOfList {
			if b == aiEndOfSection {
				return nil, malformed(rec, "%s entry %d: section end inside conditions", name, len(entries))
			}
			recBytes, err := r.bytes(3)
			if err != nil {
				return nil, malformedErr(rec, err, "%s entry %d condition", name, len(entries))
			}
			cond := AIRecord{Op: b, A: recBytes[0], B: recBytes[1], C: recBytes[2]}
			if cond.Op > AICondEnemiesAtMost {
				return nil, malformed(rec, "%s entry %d: condition op %#02x", name, len(entries), cond.Op)
			}
			e.Conditions = append(e.Conditions, cond)
			if len(e.Conditions) > maxAIConds {
				return nil, malformed(rec, "%s entry %d: more than %d conditions", name, len(entries), maxAIConds)
			}
			if b, err = r.u8(); err != nil {
				return nil, malformedErr(rec, err, "%s entry %d", name, len(entries))
			}
		}

		// Action list.
		for {
			b, err = r.u8()
			if err != nil {
				return nil, malformedErr(rec, err, "%s entry %d actions", name, len(entries))
			}
			if b == aiEndOfList {
				break
			}
			if b == aiEndOfSection {
				return nil, malformed(rec, "%s entry %d: section end inside actions", name, len(entries))
			}
			recBytes, err := r.bytes(3)
			if err != nil {
				return nil, malformedErr(rec, err, "%s entry %d action", name, len(entries))
			}
			act := AIRecord{Op: b, A: recBytes[0], B: recBytes[1], C: recBytes[2]}
			if act.Op > AIActWait {
				return nil, malformed(rec, "%s entry %d: action op %#02x", name, len(entries), act.Op)
			}
			e.Actions = append(e.Actions, act)
		}
		entries = append(entries, e)
	}
}

// ---------------------------------------------------------------------------
// Lowering to VM programs
// ---------------------------------------------------------------------------

// CompileAI lowers a decoded behavior block into a program for one
// acting entity: conditions become host queries with conditional jumps,
// actions become battle calls. The result runs on the same interpreter
// as field scripts, with the same fault isolation, and entry AIEntrySelect
// or AIEntryReaction picks the section.
func CompileAI(ai *BattleAI, actor uint8) (*vm.Program, error) {
	b := vm.NewBytecodeBuilder()

	selOffset := uint32(b.Len())
	compileAISection(b, ai.Selection, actor)
	reactOffset := uint32(b.Len())
	compileAISection(b, ai.Reaction, actor)

	entries := []vm.Entry{
		{ID: AIEntrySelect, Trigger: vm.TriggerActivate, Policy: vm.PolicyDrop, Offset: selOffset},
		{ID: AIEntryReaction, Trigger: vm.TriggerActivate, Policy: vm.PolicyDrop, Offset: reactOffset},
	}
	prog, err := vm.NewProgram(ai.ID, entries, nil, b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compile battle behavior %08x: %w", uint32(ai.ID), err)
	}
	if err := vm.Verify(prog, nil); err != nil {
		return nil, fmt.Errorf("compile battle behavior %08x: %w", uint32(ai.ID), err)
	}
	return prog, nil
}

func compileAISection(b *vm.BytecodeBuilder, entries []AIEntry, actor uint8) {
	for _, e := range entries {
		next := b.NewLabel()
		for _, cond := range e.Conditions {
			compileAICondition(b, cond, next)
		}
		for _, act := range e.Actions {
			compileAIAction(b, act, actor)
		}
		b.Emit(vm.OpHALT)
		b.Mark(next)
	}
	b.Emit(vm.OpHALT)
}

// compileAICondition emits a test that falls through on pass and jumps
// to fail otherwise.
func compileAICondition(b *vm.BytecodeBuilder, cond AIRecord, fail *vm.Label) {
	switch cond.Op {
	case AICondAlways:
		return
	case AICondHPBelowHalf:
		b.EmitByte(vm.OpPushImm8, cond.A)
		b.EmitByte(vm.OpPushImm8, 50)
		b.EmitNative(vm.NativeHPRatioBelow, 2)
	case AICondStatus:
		b.EmitByte(vm.OpPushImm8, cond.A)
		b.EmitByte(vm.OpPushImm8, cond.B)
		b.EmitByte(vm.OpPushImm8, cond.C)
		b.EmitNative(vm.NativeCheckStatus, 3)
	case AICondMoved:
		b.EmitByte(vm.OpPushImm8, cond.A)
		b.EmitNative(vm.NativeBattleMoved, 1)
	case AICondDead:
		b.EmitByte(vm.OpPushImm8, cond.A)
		b.EmitNative(vm.NativeEntityDead, 1)
	case AICondEnemiesAtMost:
		b.EmitNative(vm.NativeLivingEnemies, 0)
		b.EmitByte(vm.OpPushImm8, cond.A)
		b.Emit(vm.OpCmpLE)
	}
	b.EmitJump(vm.OpJumpFalse, fail)
}

func compileAIAction(b *vm.BytecodeBuilder, act AIRecord, actor uint8) {
	switch act.Op {
	case AIActAttack:
		b.EmitByte(vm.OpPushImm8, actor)
		b.EmitByte(vm.OpPushImm8, 0)
		b.EmitByte(vm.OpPushImm8, act.A)
		b.EmitNative(vm.NativeBattleCommand, 3)
		b.Emit(vm.OpPop)
	case AIActTech:
		b.EmitByte(vm.OpPushImm8, actor)
		b.EmitByte(vm.OpPushImm8, act.A)
		b.EmitByte(vm.OpPushImm8, act.B)
		b.EmitNative(vm.NativeUseTech, 3)
		b.Emit(vm.OpPop)
	case AIActDefend:
		b.EmitByte(vm.OpPushImm8, actor)
		b.EmitByte(vm.OpPushImm8, 1)
		b.EmitByte(vm.OpPushImm8, 0)
		b.EmitNative(vm.NativeBattleCommand, 3)
		b.Emit(vm.OpPop)
	case AIActFlee:
		b.EmitByte(vm.OpPushImm8, actor)
		b.EmitByte(vm.OpPushImm8, 2)
		b.EmitByte(vm.OpPushImm8, 0)
		b.EmitNative(vm.NativeBattleCommand, 3)
		b.Emit(vm.OpPop)
	case AIActWait:
		b.Emit(vm.OpNOP)
	}
}
