package assets

import (
	"github.com/epochengine/epoch/container"
)

const (
	tilesetMagic   = "TSET"
	tilesetVersion = 1
)

// AnimGroupNone marks a static tile.
const AnimGroupNone uint16 = 0xFFFF

// TileRef maps one tile to a sprite-sheet frame, optionally animated
// through an animation-table group.
type TileRef struct {
	SheetFrame uint16
	AnimGroup  uint16
}

// Tileset names the frames a map's tile indices resolve to. Frame and
// group references are validated against the sheet and animation table
// when the loader links a scene.
type Tileset struct {
	ID      container.RecordID
	TileW   int
	TileH   int
	SheetID container.RecordID
	Tiles   []TileRef
}

func (t *Tileset) AssetKind() container.Kind { return container.KindTileset }

func (t *Tileset) MemSize() int {
	return 48 + len(t.Tiles)*4
}

// DecodeTileset decodes a tileset record.
func DecodeTileset(rec *container.AssetRecord) (*Tileset, error) {
	r := newReader(rec.Data)
	if err := r.magic(tilesetMagic); err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	version, err := r.u16()
	if err != nil {
		return nil, malformedErr(rec, err, "header")
	}
	if version != tilesetVersion {
		return nil, malformed(rec, "tileset version %d", version)
	}

	tileCount, err1 := r.u16()
	tileW, err2 := r.u8()
	tileH, err3 := r.u8()
	sheetID, err4 := r.u32()
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return nil, malformedErr(rec, err, "header")
		}
	}
	if tileCount == 0 {
		return nil, malformed(rec, "zero tile count")
	}
	if tileW == 0 || tileH == 0 {
		return nil, malformed(rec, "tile size %dx%d", tileW, tileH)
	}

	ts := &Tileset{
		ID:      rec.ID,
		TileW:   int(tileW),
		TileH:   int(tileH),
		SheetID: container.RecordID(sheetID),
		Tiles:   make([]TileRef, tileCount),
	}
	for i := range ts.Tiles {
		frame, err1 := r.u16()
		group, err2 := r.u16()
		if err1 != nil || err2 != nil {
			return nil, malformedErr(rec, errTruncated, "tile %d", i)
		}
		ts.Tiles[i] = TileRef{SheetFrame: frame, AnimGroup: group}
	}
	return ts, nil
}
