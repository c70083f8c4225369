package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildDRP packs subfiles into a bundle image. Names must be exactly
// four bytes.
func buildDRP(subs []DRPSubfile) []byte {
	var buf bytes.Buffer
	buf.Write(drpMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint16(len(subs)<<6))
	binary.Write(&buf, binary.LittleEndian, uint16(0))

	off := drpHeaderSize + 4*len(subs)
	for _, s := range subs {
		binary.Write(&buf, binary.LittleEndian, uint32(off))
		off += drpSubHeaderSize + len(s.Data)
	}
	for _, s := range subs {
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		binary.Write(&buf, binary.LittleEndian, binary.BigEndian.Uint32([]byte(s.Name)))
		buf.WriteByte(byte(s.Kind))
		size := uint32(len(s.Data)) << 4
		buf.Write([]byte{byte(size), byte(size >> 8), byte(size >> 16)})
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

func TestParseDRP(t *testing.T) {
	want := []DRPSubfile{
		{Name: "bg00", Kind: DRPTIM, Data: []byte{0x10, 0x00, 0x00, 0x00}},
		{Name: "wlk0", Kind: DRPAnim, Data: bytes.Repeat([]byte{7}, 32)},
		{Name: "cmp0", Kind: DRPCompressed, Data: []byte{0x07, 'A', 'B', 'C'}},
	}
	img := buildDRP(want)

	got, err := ParseDRP(img)
	if err != nil {
		t.Fatalf("ParseDRP failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d subfiles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Errorf("subfile %d: name = %q, want %q", i, got[i].Name, want[i].Name)
		}
		if got[i].Kind != want[i].Kind {
			t.Errorf("subfile %d: kind = %d, want %d", i, got[i].Kind, want[i].Kind)
		}
		if !bytes.Equal(got[i].Data, want[i].Data) {
			t.Errorf("subfile %d: data = %x, want %x", i, got[i].Data, want[i].Data)
		}
	}
}

func TestParseDRPBadMagic(t *testing.T) {
	img := buildDRP([]DRPSubfile{{Name: "bg00", Kind: DRPTIM, Data: []byte{1}}})
	img[0] = 'x'
	if _, err := ParseDRP(img); !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("ParseDRP = %v, want ErrCorruptContainer", err)
	}
}

func TestParseDRPTruncated(t *testing.T) {
	img := buildDRP([]DRPSubfile{
		{Name: "bg00", Kind: DRPTIM, Data: bytes.Repeat([]byte{1}, 40)},
	})
	for _, n := range []int{0, 8, drpHeaderSize, drpHeaderSize + 2, len(img) - 1} {
		if _, err := ParseDRP(img[:n]); !errors.Is(err, ErrCorruptContainer) {
			t.Errorf("ParseDRP(truncated to %d) = %v, want ErrCorruptContainer", n, err)
		}
	}
}

func TestExpandLZSS(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		want []byte
	}{
		{
			"literals then back reference",
			[]byte{0x07, 'A', 'B', 'C', 0xEE, 0xF0},
			[]byte("ABCABC"),
		},
		{
			"overlapping run",
			[]byte{0x01, 'X', 0xEE, 0xF7},
			bytes.Repeat([]byte{'X'}, 11),
		},
		{
			"empty input",
			nil,
			[]byte{},
		},
		{
			"reference into untouched window",
			[]byte{0x00, 0x00, 0x00},
			[]byte{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandLZSS(tt.src)
			if err != nil {
				t.Fatalf("ExpandLZSS failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ExpandLZSS = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandLZSSTruncatedReference(t *testing.T) {
	if _, err := ExpandLZSS([]byte{0x00, 0xEE}); !errors.Is(err, ErrCorruptContainer) {
		t.Errorf("ExpandLZSS = %v, want ErrCorruptContainer", err)
	}
}
