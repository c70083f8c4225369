package assets

import (
	"github.com/epochengine/epoch/container"
)

const (
	animMagic   = "ANIM"
	animVersion = 1
)

// LoopMode says how an animation behaves past its last frame.
type LoopMode uint8

const (
	LoopNone     LoopMode = 0
	LoopForever  LoopMode = 1
	LoopPingPong LoopMode = 2
)

// AnimFrame flag bits.
const (
	FrameMirrorX uint8 = 1 << 0
	FrameMirrorY uint8 = 1 << 1
)

// AnimFrame is one step of an animation.
type AnimFrame struct {
	SheetFrame uint16
	Duration   uint8 // ticks, never zero
	Flags      uint8
}

// Animation is one playable sequence.
type Animation struct {
	ID     uint16
	Loop   LoopMode
	Frames []AnimFrame
}

// Ticks returns the animation's total duration in ticks, one pass.
func (a *Animation) Ticks() int {
	n := 0
	for _, f := range a.Frames {
		n += int(f.Duration)
	}
	return n
}

// AnimationTable is a decoded animation bank.
type AnimationTable struct {
	ID    container.RecordID
	Anims []Animation

	byID map[uint16]int
}

func (t *AnimationTable) AssetKind() container.Kind { return container.KindAnimTable }

func (t *AnimationTable) MemSize() int {
	n := 64
	for _, a := range t.Anims {
		n += 16 + len(a.Frames)*4
	}
	return n
}

// Anim resolves an animation by id.
func (t *AnimationTable) Anim(id uint16) (*Animation, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.Anims[i], true
}

// DecodeAnimTable decodes an animation bank record.
func DecodeAnimTable(rec *container.AssetRecord) (*AnimationTable, error) {
	r := newReader(rec.Data)
	if err := r.magic(animMagic); err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	version, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	if version != animVersion {
		return nil, malformed(rec, "animation table version %d", version)
	}
	animCount, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}

	t := &AnimationTable{
		ID:    rec.ID,
		Anims: make([]Animation, 0, animCount),
		byID:  make(map[uint16]int, animCount),
	}
	for i := 0; i < int(animCount); i++ {
		id, err1 := r.u16()
		frameCount, err2 := r.u8()
		loop, err3 := r.u8()
		for _, err := range []error{err1, err2, err3} {
			if err != nil {
				return nil, malformedErr(rec, err, "animation %d", i)
			}
		}
		if _, dup := t.byID[id]; dup {
			return nil, malformed(rec, "duplicate animation id %d", id)
		}
		if frameCount == 0 {
			return nil, malformed(rec, "animation %d has no frames", id)
		}
		if LoopMode(loop) > LoopPingPong {
			return nil, malformed(rec, "animation %d loop mode %d", id, loop)
		}

		anim := Animation{
			ID:     id,
			Loop:   LoopMode(loop),
			Frames: make([]AnimFrame, frameCount),
		}
		for fi := range anim.Frames {
			sheetFrame, err1 := r.u16()
			duration, err2 := r.u8()
			flags, err3 := r.u8()
			for _, err := range []error{err1, err2, err3} {
				if err != nil {
					return nil, malformedErr(rec, err, "animation %d frame %d", id, fi)
				}
			}
			if duration == 0 {
				return nil, malformed(rec, "animation %d frame %d has zero duration", id, fi)
			}
			anim.Frames[fi] = AnimFrame{SheetFrame: sheetFrame, Duration: duration, Flags: flags}
		}
		t.byID[id] = len(t.Anims)
		t.Anims = append(t.Anims, anim)
	}
	return t, nil
}
