package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The disc release packs related resources (meshes, TIM pages,
// animations, sequenced music) into "drp\0" bundles.

var drpMagic = [4]byte{'d', 'r', 'p', 0}

const (
	drpHeaderSize    = 12
	drpSubHeaderSize = 12
)

// DRPKind identifies a bundle subfile's format.
type DRPKind uint8

const (
	DRPBundle       DRPKind = 1
	DRPMesh         DRPKind = 2
	DRPTIMInfo      DRPKind = 3
	DRPTIM          DRPKind = 4
	DRPMInst        DRPKind = 5
	DRPModel        DRPKind = 11
	DRPBattlefield  DRPKind = 18
	DRPLightTIMInfo DRPKind = 21
	DRPMSeq         DRPKind = 22
	DRPAnim         DRPKind = 25
	DRPCompressed   DRPKind = 37
)

// DRPSubfile is one extracted bundle member. Kind 37 members are
// compressed; expand them with ExpandLZSS before interpreting.
type DRPSubfile struct {
	Name string // four ASCII characters
	Kind DRPKind
	Data []byte
}

// ParseDRP splits a DRP bundle into its subfiles. The header's count
// field stores the member count in its upper bits; a pointer table
// follows the header, then the members themselves, each with a 12-byte
// subheader whose 24-bit size field stores the byte length shifted
// left by four.
func ParseDRP(data []byte) ([]DRPSubfile, error) {
	if len(data) < drpHeaderSize {
		return nil, fmt.Errorf("%w: bundle truncated", ErrCorruptContainer)
	}
	if !bytes.Equal(data[0:4], drpMagic[:]) {
		return nil, fmt.Errorf("%w: bad bundle signature %q", ErrCorruptContainer, data[0:4])
	}

	n := int(binary.LittleEndian.Uint16(data[8:10]) >> 6)
	offset := drpHeaderSize + 4*n
	if offset > len(data) {
		return nil, fmt.Errorf("%w: bundle pointer table for %d members truncated", ErrCorruptContainer, n)
	}

	subs := make([]DRPSubfile, 0, n)
	for i := 0; i < n; i++ {
		if offset+drpSubHeaderSize > len(data) {
			return nil, fmt.Errorf("%w: bundle member %d header truncated", ErrCorruptContainer, i)
		}
		sub := data[offset:]
		nameWord := binary.LittleEndian.Uint32(sub[4:8])
		kind := DRPKind(sub[8])
		size := int(uint32(sub[9])|uint32(sub[10])<<8|uint32(sub[11])<<16) >> 4
		offset += drpSubHeaderSize

		if offset+size > len(data) {
			return nil, fmt.Errorf("%w: bundle member %d spans %d bytes past end", ErrCorruptContainer, i, offset+size-len(data))
		}
		name := [4]byte{byte(nameWord >> 24), byte(nameWord >> 16), byte(nameWord >> 8), byte(nameWord)}
		subs = append(subs, DRPSubfile{
			Name: string(name[:]),
			Kind: kind,
			Data: data[offset : offset+size],
		})
		offset += size
	}
	return subs, nil
}

// ---------------------------------------------------------------------------
// LZSS expansion for kind-37 members
// ---------------------------------------------------------------------------

const (
	lzssWindowSize = 0x1000
	lzssInitPos    = lzssWindowSize - 18
	lzssMinMatch   = 3
)

// ExpandLZSS expands a compressed bundle member. The scheme is the
// classic 4 KiB sliding-window one: control bytes are consumed LSB
// first, a set bit passes one literal through, a clear bit copies
// length+3 bytes from a 12-bit window offset.
func ExpandLZSS(src []byte) ([]byte, error) {
	var win [lzssWindowSize]byte
	wp := lzssInitPos

	out := make([]byte, 0, len(src)*2)
	pos := 0
	for pos < len(src) {
		ctrl := src[pos]
		pos++
		for bit := 0; bit < 8 && pos < len(src); bit++ {
			if ctrl&(1<<bit) != 0 {
				b := src[pos]
				pos++
				out = append(out, b)
				win[wp] = b
				wp = (wp + 1) & (lzssWindowSize - 1)
				continue
			}
			if pos+2 > len(src) {
				return nil, fmt.Errorf("%w: compressed member truncated mid-reference", ErrCorruptContainer)
			}
			lo, hi := src[pos], src[pos+1]
			pos += 2
			from := int(lo) | int(hi&0xF0)<<4
			length := int(hi&0x0F) + lzssMinMatch
			for j := 0; j < length; j++ {
				b := win[(from+j)&(lzssWindowSize-1)]
				out = append(out, b)
				win[wp] = b
				wp = (wp + 1) & (lzssWindowSize - 1)
			}
			if len(out) > maxInflatedSize {
				return nil, fmt.Errorf("%w: compressed member expands past %d bytes", ErrCorruptContainer, maxInflatedSize)
			}
		}
	}
	return out, nil
}
