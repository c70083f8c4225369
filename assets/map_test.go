package assets

import (
	"errors"
	"testing"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// mapFixture describes a field map image to encode. Zero values for
// magic and version mean the well-formed ones.
type mapFixture struct {
	magic     string
	version   uint16
	width     uint16
	height    uint16
	flags     uint8
	tilesetID uint32
	scriptID  uint32
	tileCount uint16
	layers    [][]uint16
	collision []uint8
	triggers  []Trigger
	trailing  []byte
}

func buildMap(f mapFixture) []byte {
	var b le
	if f.magic == "" {
		f.magic = mapMagic
	}
	if f.version == 0 {
		f.version = mapVersion
	}
	b.str(f.magic)
	b.u16(f.version)
	b.u16(f.width)
	b.u16(f.height)
	b.u8(uint8(len(f.layers)))
	b.u8(f.flags)
	b.u32(f.tilesetID)
	b.u32(f.scriptID)
	b.u16(f.tileCount)
	for _, layer := range f.layers {
		for _, tile := range layer {
			b.u16(tile)
		}
	}
	b.raw(f.collision)
	b.u16(uint16(len(f.triggers)))
	for _, tr := range f.triggers {
		b.u16(tr.ID)
		b.u8(tr.X)
		b.u8(tr.Y)
		b.u8(tr.W)
		b.u8(tr.H)
		b.u8(uint8(tr.Kind))
		b.u8(uint8(tr.Policy))
		b.u16(tr.ScriptEntry)
	}
	b.raw(f.trailing)
	return b.Bytes()
}

// fieldMap is a well-formed 4x3 map with two layers and two triggers.
func fieldMap() mapFixture {
	return mapFixture{
		width:     4,
		height:    3,
		flags:     0x01,
		tilesetID: 0x1000,
		scriptID:  0x2000,
		tileCount: 8,
		layers: [][]uint16{
			{0, 1, 2, 3, 4, 5, 6, 7, 0, 1, 2, 3},
			{7, 7, 7, 7, 0, 0, 0, 0, 1, 1, 1, 1},
		},
		collision: []uint8{
			CellSolid, CellPassable, CellPassable, CellSolid,
			CellSolid, CellWater, CellTriggerOnly, CellSolid,
			CellSolid, CellLedgeDown, CellPassable, CellSolid,
		},
		triggers: []Trigger{
			{ID: 1, X: 1, Y: 0, W: 2, H: 2, Kind: vm.TriggerActivate, Policy: vm.PolicyQueue, ScriptEntry: 10},
			{ID: 2, X: 0, Y: 2, W: 4, H: 1, Kind: vm.TriggerTouch, Policy: vm.PolicyDrop, ScriptEntry: 20},
		},
	}
}

func TestDecodeMap(t *testing.T) {
	f := fieldMap()
	m, err := DecodeMap(testRec(container.KindMap, buildMap(f)))
	if err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}

	if m.Width != 4 || m.Height != 3 {
		t.Errorf("size = %dx%d, want 4x3", m.Width, m.Height)
	}
	if m.Flags != 0x01 {
		t.Errorf("flags = %#02x, want 0x01", m.Flags)
	}
	if m.TilesetID != 0x1000 || m.ScriptID != 0x2000 {
		t.Errorf("refs = %08x/%08x, want 00001000/00002000", uint32(m.TilesetID), uint32(m.ScriptID))
	}
	if m.TileCount != 8 {
		t.Errorf("tile count = %d, want 8", m.TileCount)
	}
	if len(m.Layers) != 2 {
		t.Fatalf("layer count = %d, want 2", len(m.Layers))
	}
	if got := m.Tile(0, 3, 1); got != 7 {
		t.Errorf("Tile(0,3,1) = %d, want 7", got)
	}
	if got := m.Tile(1, 0, 2); got != 1 {
		t.Errorf("Tile(1,0,2) = %d, want 1", got)
	}
	if got := m.CollisionAt(1, 1); got != CellWater {
		t.Errorf("CollisionAt(1,1) = %d, want CellWater", got)
	}
	if got := m.CollisionAt(2, 1); got != CellTriggerOnly {
		t.Errorf("CollisionAt(2,1) = %d, want CellTriggerOnly", got)
	}
	if len(m.Triggers) != 2 {
		t.Fatalf("trigger count = %d, want 2", len(m.Triggers))
	}
	if m.Triggers[1].ScriptEntry != 20 {
		t.Errorf("trigger 2 entry = %d, want 20", m.Triggers[1].ScriptEntry)
	}
}

func TestDecodeMapTrailingPadding(t *testing.T) {
	// Shipped records pad to block boundaries after the trigger table.
	f := fieldMap()
	f.trailing = make([]byte, 37)
	if _, err := DecodeMap(testRec(container.KindMap, buildMap(f))); err != nil {
		t.Fatalf("DecodeMap with padding failed: %v", err)
	}
}

func TestTriggerContains(t *testing.T) {
	tr := Trigger{X: 2, Y: 3, W: 2, H: 1}
	tests := []struct {
		x, y int
		want bool
	}{
		{2, 3, true},
		{3, 3, true},
		{4, 3, false},
		{2, 2, false},
		{2, 4, false},
		{1, 3, false},
	}
	for _, tt := range tests {
		if got := tr.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestTriggerAt(t *testing.T) {
	m, err := DecodeMap(testRec(container.KindMap, buildMap(fieldMap())))
	if err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}

	tr, ok := m.TriggerAt(2, 1, vm.TriggerActivate)
	if !ok || tr.ID != 1 {
		t.Errorf("TriggerAt(2,1,activate) = %v, %v; want trigger 1", tr, ok)
	}
	// Same cell, wrong kind.
	if _, ok := m.TriggerAt(2, 1, vm.TriggerTouch); ok {
		t.Error("TriggerAt(2,1,touch) found a trigger; the cell has only an activate zone")
	}
	tr, ok = m.TriggerAt(3, 2, vm.TriggerTouch)
	if !ok || tr.ID != 2 {
		t.Errorf("TriggerAt(3,2,touch) = %v, %v; want trigger 2", tr, ok)
	}
	if _, ok := m.TriggerAt(0, 0, vm.TriggerActivate); ok {
		t.Error("TriggerAt(0,0) found a trigger on an empty cell")
	}
}

func TestTriggerAtPrefersTableOrder(t *testing.T) {
	f := fieldMap()
	f.triggers = []Trigger{
		{ID: 5, X: 0, Y: 0, W: 2, H: 2, Kind: vm.TriggerTouch, ScriptEntry: 50},
		{ID: 6, X: 0, Y: 0, W: 4, H: 3, Kind: vm.TriggerTouch, ScriptEntry: 60},
	}
	m, err := DecodeMap(testRec(container.KindMap, buildMap(f)))
	if err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}
	tr, ok := m.TriggerAt(1, 1, vm.TriggerTouch)
	if !ok || tr.ID != 5 {
		t.Errorf("TriggerAt on overlap = %v, %v; want the first table entry", tr, ok)
	}
}

func TestDecodeMapRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", buildMap(func() mapFixture { f := fieldMap(); f.magic = "PAMF"; return f }())},
		{"bad version", buildMap(func() mapFixture { f := fieldMap(); f.version = 2; return f }())},
		{"zero width", buildMap(func() mapFixture { f := fieldMap(); f.width = 0; return f }())},
		{"zero height", buildMap(func() mapFixture { f := fieldMap(); f.height = 0; return f }())},
		{"oversized", buildMap(mapFixture{width: 0x8000, height: 0x8000, tileCount: 1, layers: make([][]uint16, 1)})},
		{"zero layers", buildMap(func() mapFixture { f := fieldMap(); f.layers = nil; return f }())},
		{"four layers", buildMap(func() mapFixture {
			f := fieldMap()
			l := f.layers[0]
			f.layers = [][]uint16{l, l, l, l}
			return f
		}())},
		{"zero tile count", buildMap(func() mapFixture { f := fieldMap(); f.tileCount = 0; return f }())},
		{"tile out of range", buildMap(func() mapFixture { f := fieldMap(); f.layers[0][5] = 8; return f }())},
		{"duplicate trigger id", buildMap(func() mapFixture {
			f := fieldMap()
			f.triggers[1].ID = f.triggers[0].ID
			return f
		}())},
		{"trigger kind", buildMap(func() mapFixture { f := fieldMap(); f.triggers[0].Kind = 3; return f }())},
		{"trigger policy", buildMap(func() mapFixture { f := fieldMap(); f.triggers[0].Policy = 3; return f }())},
		{"trigger zero extent", buildMap(func() mapFixture { f := fieldMap(); f.triggers[0].W = 0; return f }())},
		{"trigger outside map", buildMap(func() mapFixture {
			f := fieldMap()
			f.triggers[0].X = 3
			f.triggers[0].W = 2
			return f
		}())},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMap(testRec(container.KindMap, tt.data))
			if !errors.Is(err, ErrMalformedAsset) {
				t.Errorf("DecodeMap = %v, want ErrMalformedAsset", err)
			}
		})
	}
}

func TestDecodeMapTruncated(t *testing.T) {
	img := buildMap(fieldMap())
	// Cut inside the header, a layer, the collision grid and the
	// trigger table.
	for _, n := range []int{3, 10, 21, 30, len(img) - 25, len(img) - 5} {
		if _, err := DecodeMap(testRec(container.KindMap, img[:n])); !errors.Is(err, ErrMalformedAsset) {
			t.Errorf("DecodeMap(truncated to %d) = %v, want ErrMalformedAsset", n, err)
		}
	}
}

func TestMapMemSize(t *testing.T) {
	m, err := DecodeMap(testRec(container.KindMap, buildMap(fieldMap())))
	if err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}
	want := 64 + 2*12*2 + 12 + 2*12
	if got := m.MemSize(); got != want {
		t.Errorf("MemSize = %d, want %d", got, want)
	}
}
