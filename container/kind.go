package container

import (
	"fmt"
	"path"
	"strings"

	"github.com/spaolacci/murmur3"
)

// RecordID is the stable identifier of a record, derived from its
// archive path. Ids survive repacking as long as paths do.
type RecordID uint32

// IDForPath returns the id a record with the given path carries.
func IDForPath(p string) RecordID {
	return RecordID(murmur3.Sum32([]byte(p)))
}

// Kind classifies a record's payload format. Decoding is the assets
// package's job; the container only tags records so callers can route
// them.
type Kind uint8

const (
	KindRaw Kind = iota
	KindMap
	KindTileset
	KindSpriteSheet
	KindAnimTable
	KindDialogue
	KindScript
	KindBattleAI
	KindCueTable
	KindBundle  // DRP sub-container
	KindArchive // CPT sub-container
)

var kindNames = map[Kind]string{
	KindRaw:         "raw",
	KindMap:         "map",
	KindTileset:     "tileset",
	KindSpriteSheet: "spritesheet",
	KindAnimTable:   "animtable",
	KindDialogue:    "dialogue",
	KindScript:      "script",
	KindBattleAI:    "battleai",
	KindCueTable:    "cuetable",
	KindBundle:      "bundle",
	KindArchive:     "archive",
}

// String implements the Stringer interface.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var kindByExt = map[string]Kind{
	".map": KindMap,
	".tst": KindTileset,
	".spr": KindSpriteSheet,
	".anm": KindAnimTable,
	".msg": KindDialogue,
	".evt": KindScript,
	".atb": KindBattleAI,
	".sab": KindCueTable,
	".mab": KindCueTable,
	".drp": KindBundle,
	".cpt": KindArchive,
}

// Dialogue banks as shipped: the string tables plus the per-area
// message groups.
var dialoguePrefixes = []string{
	"string_",
	"cmes", "comu", "exms", "kmes", "mesi", "mesk", "mess", "mest",
	"mon_tec",
}

// KindOfPath infers a record's kind from its archive path.
func KindOfPath(p string) Kind {
	base := strings.ToLower(path.Base(p))
	if k, ok := kindByExt[path.Ext(base)]; ok {
		return k
	}
	if strings.HasSuffix(base, ".bin") {
		for _, pre := range dialoguePrefixes {
			if strings.HasPrefix(base, pre) {
				return KindDialogue
			}
		}
	}
	return KindRaw
}
