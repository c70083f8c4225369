package assets

import (
	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// Decode routes a record to its kind's decoder. Kinds without one
// (raw payloads and the sub-container kinds, which callers split with
// the container package) pass through as Raw.
func Decode(rec *container.AssetRecord, natives vm.NativeSet) (Asset, error) {
	switch rec.Kind {
	case container.KindMap:
		return DecodeMap(rec)
	case container.KindTileset:
		return DecodeTileset(rec)
	case container.KindSpriteSheet:
		return DecodeSpriteSheet(rec)
	case container.KindAnimTable:
		return DecodeAnimTable(rec)
	case container.KindDialogue:
		return DecodeDialogue(rec)
	case container.KindScript:
		return DecodeScript(rec, natives)
	case container.KindBattleAI:
		return DecodeBattleAI(rec)
	case container.KindCueTable:
		return DecodeCueTable(rec)
	default:
		return &Raw{ID: rec.ID, Kind: rec.Kind, Data: rec.Data}, nil
	}
}
