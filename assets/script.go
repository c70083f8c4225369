package assets

import (
	"unicode/utf8"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

const (
	scriptMagic   = "EVNT"
	scriptVersion = 2
	maxScriptCode = 1 << 22
)

// Script wraps a validated program for the cache. The program itself
// lives in the vm package; by the time a Script exists, vm.Verify has
// accepted it, so the interpreter never sees structural damage.
type Script struct {
	Program *vm.Program
}

func (s *Script) AssetKind() container.Kind { return container.KindScript }

func (s *Script) MemSize() int {
	n := 64 + len(s.Program.Code) + len(s.Program.Entries)*16
	for _, c := range s.Program.Consts {
		n += 16 + len(c.Str)
	}
	return n
}

// DecodeScript decodes and verifies an event program record. A nil
// natives set skips the native-call binding check; the engine always
// passes its host table, so unbound calls surface at load time.
func DecodeScript(rec *container.AssetRecord, natives vm.NativeSet) (*Script, error) {
	r := newReader(rec.Data)
	if err := r.magic(scriptMagic); err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	version, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	if version != scriptVersion {
		return nil, malformed(rec, "program version %d", version)
	}

	entryCount, err1 := r.u16()
	constCount, err2 := r.u16()
	codeLen, err3 := r.u32()
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return nil, malformedErr(rec, err, "header")
		}
	}
	if entryCount == 0 {
		return nil, malformed(rec, "no entry points")
	}
	if codeLen > maxScriptCode {
		return nil, malformed(rec, "code length %d", codeLen)
	}

	entries := make([]vm.Entry, entryCount)
	for i := range entries {
		id, err1 := r.u16()
		trigger, err2 := r.u8()
		policy, err3 := r.u8()
		offset, err4 := r.u32()
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, malformedErr(rec, err, "entry %d", i)
			}
		}
		if vm.TriggerKind(trigger) > vm.TriggerTouch {
			return nil, malformed(rec, "entry %d trigger %d", id, trigger)
		}
		if vm.Policy(policy) > vm.PolicyDrop {
			return nil, malformed(rec, "entry %d policy %d", id, policy)
		}
		entries[i] = vm.Entry{
			ID:      id,
			Trigger: vm.TriggerKind(trigger),
			Policy:  vm.Policy(policy),
			Offset:  offset,
		}
	}

	consts := make([]vm.Const, constCount)
	for i := range consts {
		tag, err := r.u8()
		if err != nil {
			return nil, malformedErr(rec, err, "constant %d", i)
		}
		switch vm.ConstTag(tag) {
		case vm.ConstInt:
			v, err := r.u32()
			if err != nil {
				return nil, malformedErr(rec, err, "constant %d", i)
			}
			consts[i] = vm.Const{Tag: vm.ConstInt, Int: int32(v)}
		case vm.ConstString:
			n, err := r.u16()
			if err != nil {
				return nil, malformedErr(rec, err, "constant %d", i)
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return nil, malformedErr(rec, err, "constant %d", i)
			}
			if !utf8.Valid(raw) {
				return nil, malformed(rec, "constant %d not valid UTF-8", i)
			}
			consts[i] = vm.Const{Tag: vm.ConstString, Str: string(raw)}
		case vm.ConstRecord:
			v, err := r.u32()
			if err != nil {
				return nil, malformedErr(rec, err, "constant %d", i)
			}
			consts[i] = vm.Const{Tag: vm.ConstRecord, Record: container.RecordID(v)}
		default:
			return nil, malformed(rec, "constant %d tag %d", i, tag)
		}
	}

	raw, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, malformedErr(rec, err, "code")
	}
	code := append([]byte(nil), raw...) // detach from the record buffer

	prog, err := vm.NewProgram(rec.ID, entries, consts, code)
	if err != nil {
		return nil, malformedErr(rec, err, "entry table")
	}
	if err := vm.Verify(prog, natives); err != nil {
		return nil, malformedErr(rec, err, "verification")
	}
	return &Script{Program: prog}, nil
}
