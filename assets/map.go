package assets

import (
	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// Map geometry limits. Shipped maps top out near 128x128; anything
// past the cap is damage, not data.
const (
	mapMagic     = "FMAP"
	mapVersion   = 1
	maxMapCells  = 1 << 20
	maxMapLayers = 3
)

// Trigger is one scripted zone on a map.
type Trigger struct {
	ID          uint16
	X, Y, W, H  uint8
	Kind        vm.TriggerKind
	Policy      vm.Policy
	ScriptEntry uint16
}

// Contains reports whether the cell (x, y) lies inside the trigger.
func (t *Trigger) Contains(x, y int) bool {
	return x >= int(t.X) && x < int(t.X)+int(t.W) &&
		y >= int(t.Y) && y < int(t.Y)+int(t.H)
}

// Collision cell values. Values beyond the named set pass through
// untouched; movement rules for them live with the collision consumer.
const (
	CellPassable    uint8 = 0
	CellSolid       uint8 = 1
	CellTriggerOnly uint8 = 2
	CellWater       uint8 = 3
	CellLedgeDown   uint8 = 4
)

// Map is a decoded field map: tile layers, the collision grid and the
// trigger table, plus references to the tileset and script program the
// loader links in.
type Map struct {
	ID        container.RecordID
	Width     int
	Height    int
	Flags     uint8
	TilesetID container.RecordID
	ScriptID  container.RecordID
	TileCount int

	Layers    [][]uint16 // row-major, bottom layer first
	Collision []uint8    // row-major
	Triggers  []Trigger
}

func (m *Map) AssetKind() container.Kind { return container.KindMap }

func (m *Map) MemSize() int {
	n := 64
	for _, l := range m.Layers {
		n += len(l) * 2
	}
	n += len(m.Collision)
	n += len(m.Triggers) * 12
	return n
}

// Tile returns the tile index at (x, y) on a layer.
func (m *Map) Tile(layer, x, y int) uint16 {
	return m.Layers[layer][y*m.Width+x]
}

// CollisionAt returns the collision cell at (x, y).
func (m *Map) CollisionAt(x, y int) uint8 {
	return m.Collision[y*m.Width+x]
}

// TriggerAt finds the first trigger of the given kind covering (x, y),
// in table order.
func (m *Map) TriggerAt(x, y int, kind vm.TriggerKind) (*Trigger, bool) {
	for i := range m.Triggers {
		t := &m.Triggers[i]
		if t.Kind == kind && t.Contains(x, y) {
			return t, true
		}
	}
	return nil, false
}

// DecodeMap decodes a field map record.
func DecodeMap(rec *container.AssetRecord) (*Map, error) {
	r := newReader(rec.Data)
	if err := r.magic(mapMagic); err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	version, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	if version != mapVersion {
		return nil, malformed(rec, "map version %d", version)
	}

	width, err1 := r.u16()
	height, err2 := r.u16()
	layerCount, err3 := r.u8()
	flags, err4 := r.u8()
	tilesetID, err5 := r.u32()
	scriptID, err6 := r.u32()
	tileCount, err7 := r.u16()
	for _, err := range []error{err1, err2, err3, err4, err5, err6, err7} {
		if err != nil {
			return nil, malformedErr(rec, err, "header")
		}
	}

	if width == 0 || height == 0 || int(width)*int(height) > maxMapCells {
		return nil, malformed(rec, "size %dx%d", width, height)
	}
	if layerCount < 1 || layerCount > maxMapLayers {
		return nil, malformed(rec, "layer count %d", layerCount)
	}
	if tileCount == 0 {
		return nil, malformed(rec, "zero tile count")
	}

	cells := int(width) * int(height)
	m := &Map{
		ID:        rec.ID,
		Width:     int(width),
		Height:    int(height),
		Flags:     flags,
		TilesetID: container.RecordID(tilesetID),
		ScriptID:  container.RecordID(scriptID),
		TileCount: int(tileCount),
		Layers:    make([][]uint16, layerCount),
	}

	for li := range m.Layers {
		layer := make([]uint16, cells)
		for i := range layer {
			v, err := r.u16()
			if err != nil {
				return nil, malformedErr(rec, err, "layer %d", li)
			}
			if int(v) >= m.TileCount {
				return nil, malformed(rec, "layer %d cell %d: tile %d of %d", li, i, v, m.TileCount)
			}
			layer[i] = v
		}
		m.Layers[li] = layer
	}

	grid, err := r.bytes(cells)
	if err != nil {
		return nil, malformedErr(rec, err, "collision grid")
	}
	m.Collision = make([]uint8, cells)
	copy(m.Collision, grid)

	nTriggers, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "trigger table")
	}
	m.Triggers = make([]Trigger, 0, nTriggers)
	seen := make(map[uint16]bool, nTriggers)
	for i := 0; i < int(nTriggers); i++ {
		raw, err := r.bytes(10)
		if err != nil {
			return nil, malformedErr(rec, err, "trigger %d", i)
		}
		t := Trigger{
			ID:          uint16(raw[0]) | uint16(raw[1])<<8,
			X:           raw[2],
			Y:           raw[3],
			W:           raw[4],
			H:           raw[5],
			Kind:        vm.TriggerKind(raw[6]),
			Policy:      vm.Policy(raw[7]),
			ScriptEntry: uint16(raw[8]) | uint16(raw[9])<<8,
		}
		if seen[t.ID] {
			return nil, malformed(rec, "duplicate trigger id %d", t.ID)
		}
		seen[t.ID] = true
		if t.Kind > vm.TriggerTouch {
			return nil, malformed(rec, "trigger %d kind %d", t.ID, t.Kind)
		}
		if t.Policy > vm.PolicyDrop {
			return nil, malformed(rec, "trigger %d policy %d", t.ID, t.Policy)
		}
		if t.W == 0 || t.H == 0 ||
			int(t.X)+int(t.W) > m.Width || int(t.Y)+int(t.H) > m.Height {
			return nil, malformed(rec, "trigger %d rect %d,%d %dx%d outside %dx%d",
				t.ID, t.X, t.Y, t.W, t.H, m.Width, m.Height)
		}
		m.Triggers = append(m.Triggers, t)
	}

	// Remaining bytes are block alignment padding in the shipped data.
	return m, nil
}
