package assets

import (
	"github.com/epochengine/epoch/container"
)

// Placeholder builds the no-op substitute for a kind whose record
// failed to decode, or reports false where substitution is not viable:
// maps and scripts carry scene structure a stand-in cannot fake, so
// their failures stay fatal to the load.
func Placeholder(kind container.Kind) (Asset, bool) {
	switch kind {
	case container.KindAnimTable:
		return &AnimationTable{
			Anims: []Animation{{
				ID:     0,
				Loop:   LoopNone,
				Frames: []AnimFrame{{SheetFrame: 0, Duration: 1}},
			}},
			byID: map[uint16]int{0: 0},
		}, true

	case container.KindDialogue:
		return &DialogueTable{
			Entries: []DialogueEntry{{
				Ident:  "PLACEHOLDER_000",
				Num:    0,
				Tokens: []Token{{Kind: TokenText, Text: "…"}},
			}},
			byNum: map[int]int{0: 0},
		}, true

	case container.KindCueTable:
		// Silent bank: every cue lookup misses, play requests no-op.
		return &CueTable{byID: map[uint16]int{}}, true

	case container.KindSpriteSheet:
		return &SpriteSheet{
			FrameW: 16,
			FrameH: 16,
			Frames: [][]uint32{make([]uint32, 16*16)},
		}, true

	case container.KindTileset:
		return &Tileset{
			TileW: 16,
			TileH: 16,
			Tiles: []TileRef{{SheetFrame: 0, AnimGroup: AnimGroupNone}},
		}, true
	}
	return nil, false
}
