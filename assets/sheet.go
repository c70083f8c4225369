package assets

import (
	"encoding/binary"

	"github.com/epochengine/epoch/container"
)

const (
	sheetMagic   = "SPRS"
	sheetVersion = 1

	timMagic = 0x10

	maxFramePixels = 1 << 20
	maxFrameCount  = 4096
)

// Sheet pixel formats on the wire.
const (
	sheetIndexed8 uint8 = 0
	sheetRGBA5551 uint8 = 1
)

// SpriteSheet is a decoded frame bank, unified to ARGB32 regardless of
// source encoding. Frames share geometry; consumers index them through
// tilesets and animation tables.
type SpriteSheet struct {
	ID     container.RecordID
	FrameW int
	FrameH int
	Frames [][]uint32 // row-major ARGB32 per frame
}

func (s *SpriteSheet) AssetKind() container.Kind { return container.KindSpriteSheet }

func (s *SpriteSheet) MemSize() int {
	return 48 + len(s.Frames)*s.FrameW*s.FrameH*4
}

// FrameCount returns the number of frames in the sheet.
func (s *SpriteSheet) FrameCount() int { return len(s.Frames) }

// Frame returns frame i's pixels. The slice is shared; do not modify.
func (s *SpriteSheet) Frame(i int) []uint32 { return s.Frames[i] }

// scale5 widens a 5-bit channel to 8 bits.
func scale5(v uint32) uint32 {
	return (v << 3) | (v >> 2)
}

// color5551 converts one RGBA5551 texel to ARGB32. The transparency
// bit maps to alpha 0xF7 rather than blend math, reproducing the
// conversion the original data tooling used.
func color5551(v uint16) uint32 {
	r := scale5(uint32(v) & 31)
	g := scale5(uint32(v>>5) & 31)
	b := scale5(uint32(v>>10) & 31)
	a := ^scale5(uint32(v>>15)&1) & 0xFF
	return a<<24 | r<<16 | g<<8 | b
}

// DecodeSpriteSheet decodes a frame bank record. Two source encodings
// exist: the repacked "SPRS" layout and raw PSX TIM images (always a
// single frame spanning the whole image).
func DecodeSpriteSheet(rec *container.AssetRecord) (*SpriteSheet, error) {
	if len(rec.Data) >= 4 && binary.LittleEndian.Uint32(rec.Data) == timMagic {
		return decodeTIMSheet(rec)
	}
	return decodeSPRS(rec)
}

func decodeSPRS(rec *container.AssetRecord) (*SpriteSheet, error) {
	r := newReader(rec.Data)
	if err := r.magic(sheetMagic); err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	version, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	if version != sheetVersion {
		return nil, malformed(rec, "sheet version %d", version)
	}

	frameCount, err1 := r.u16()
	frameW, err2 := r.u16()
	frameH, err3 := r.u16()
	format, err4 := r.u8()
	clutCount, err5 := r.u8()
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, malformedErr(rec, err, "header")
		}
	}

	if frameCount == 0 || frameCount > maxFrameCount {
		return nil, malformed(rec, "frame count %d", frameCount)
	}
	if frameW == 0 || frameH == 0 || int(frameW)*int(frameH) > maxFramePixels {
		return nil, malformed(rec, "frame size %dx%d", frameW, frameH)
	}

	pixels := int(frameW) * int(frameH)
	sheet := &SpriteSheet{
		ID:     rec.ID,
		FrameW: int(frameW),
		FrameH: int(frameH),
		Frames: make([][]uint32, frameCount),
	}

	switch format {
	case sheetIndexed8:
		if clutCount == 0 {
			return nil, malformed(rec, "indexed sheet with no CLUTs")
		}
		cluts := make([][]uint32, clutCount)
		for ci := range cluts {
			clut := make([]uint32, 256)
			for i := range clut {
				v, err := r.u16()
				if err != nil {
					return nil, malformedErr(rec, err, "CLUT %d", ci)
				}
				clut[i] = color5551(v)
			}
			cluts[ci] = clut
		}
		for fi := range sheet.Frames {
			sel, err := r.u8()
			if err != nil {
				return nil, malformedErr(rec, err, "frame %d", fi)
			}
			if int(sel) >= len(cluts) {
				return nil, malformed(rec, "frame %d CLUT %d of %d", fi, sel, clutCount)
			}
			idx, err := r.bytes(pixels)
			if err != nil {
				return nil, malformedErr(rec, err, "frame %d", fi)
			}
			frame := make([]uint32, pixels)
			clut := cluts[sel]
			for i, px := range idx {
				frame[i] = clut[px]
			}
			sheet.Frames[fi] = frame
		}

	case sheetRGBA5551:
		if clutCount != 0 {
			return nil, malformed(rec, "direct-color sheet with %d CLUTs", clutCount)
		}
		for fi := range sheet.Frames {
			frame := make([]uint32, pixels)
			for i := range frame {
				v, err := r.u16()
				if err != nil {
					return nil, malformedErr(rec, err, "frame %d", fi)
				}
				frame[i] = color5551(v)
			}
			sheet.Frames[fi] = frame
		}

	default:
		return nil, malformed(rec, "pixel format %d", format)
	}

	if r.remaining() != 0 {
		return nil, malformed(rec, "%d bytes after last frame", r.remaining())
	}
	return sheet, nil
}

// ---------------------------------------------------------------------------
// TIM images
// ---------------------------------------------------------------------------

// decodeTIMSheet decodes a PSX TIM into a one-frame sheet. Multi-CLUT
// images use the first palette row; palette swaps are the consumer's
// business.
func decodeTIMSheet(rec *container.AssetRecord) (*SpriteSheet, error) {
	r := newReader(rec.Data)
	if _, err := r.u32(); err != nil { // magic, already sniffed
		return nil, malformedErr(rec, err, "TIM header")
	}
	flags, err := r.u32()
	if err != nil {
		return nil, malformedErr(rec, err, "TIM header")
	}
	bpp := flags & 7
	indexed := flags&8 != 0

	var clut []uint32
	switch {
	case bpp == 0 || bpp == 1:
		if !indexed {
			return nil, malformed(rec, "TIM mode %d without CLUT", bpp)
		}
		clut, err = readTIMClut(r, rec)
		if err != nil {
			return nil, err
		}
	case bpp == 2:
		if indexed {
			return nil, malformed(rec, "16bpp TIM with CLUT flag")
		}
	case bpp == 3:
		return nil, malformed(rec, "24bpp TIM not usable as a sheet")
	default:
		return nil, malformed(rec, "TIM mode %d", bpp)
	}

	blockSize, err1 := r.u32()
	_, err2 := r.u16() // addrX
	_, err3 := r.u16() // addrY
	w, err4 := r.u16()
	h, err5 := r.u16()
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, malformedErr(rec, err, "TIM image block")
		}
	}
	if w == 0 || h == 0 {
		return nil, malformed(rec, "TIM image %dx%d", w, h)
	}
	dataLen := int(w) * 2 * int(h)
	if blockSize != uint32(12+dataLen) {
		return nil, malformed(rec, "TIM image block declares %d bytes for %dx%d", blockSize, w, h)
	}
	data, err := r.bytes(dataLen)
	if err != nil {
		return nil, malformedErr(rec, err, "TIM image data")
	}

	// Width is stored in 16-bit framebuffer units.
	var realW int
	switch bpp {
	case 0:
		realW = int(w) * 4
	case 1:
		realW = int(w) * 2
	default:
		realW = int(w)
	}
	if realW*int(h) > maxFramePixels {
		return nil, malformed(rec, "TIM image %dx%d too large", realW, h)
	}

	frame := make([]uint32, realW*int(h))
	switch bpp {
	case 0: // two pixels per byte, low nibble leftmost
		for i, b := range data {
			frame[i*2] = clut[b&0x0F]
			frame[i*2+1] = clut[b>>4]
		}
	case 1:
		for i, b := range data {
			frame[i] = clut[b]
		}
	case 2:
		for i := 0; i < len(frame); i++ {
			frame[i] = color5551(binary.LittleEndian.Uint16(data[i*2:]))
		}
	}

	return &SpriteSheet{
		ID:     rec.ID,
		FrameW: realW,
		FrameH: int(h),
		Frames: [][]uint32{frame},
	}, nil
}

// readTIMClut reads the CLUT block and converts the first palette row.
// Indexed pixels address 16 or 256 entries; short palettes are padded
// so damaged indices cannot read out of range.
func readTIMClut(r *reader, rec *container.AssetRecord) ([]uint32, error) {
	blockSize, err1 := r.u32()
	_, err2 := r.u16() // palX
	_, err3 := r.u16() // palY
	ncolors, err4 := r.u16()
	ncluts, err5 := r.u16()
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, malformedErr(rec, err, "TIM CLUT block")
		}
	}
	if ncolors == 0 || ncluts == 0 {
		return nil, malformed(rec, "TIM CLUT %dx%d", ncolors, ncluts)
	}
	if blockSize != uint32(12+int(ncolors)*int(ncluts)*2) {
		return nil, malformed(rec, "TIM CLUT block declares %d bytes for %dx%d", blockSize, ncolors, ncluts)
	}
	raw, err := r.bytes(int(ncolors) * int(ncluts) * 2)
	if err != nil {
		return nil, malformedErr(rec, err, "TIM CLUT data")
	}

	clut := make([]uint32, 256)
	for i := 0; i < int(ncolors) && i < 256; i++ {
		clut[i] = color5551(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return clut, nil
}
