package world

import (
	"sort"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// DefaultTickHz is the simulation rate the shipped game ran at.
const DefaultTickHz = 60

// Facing directions.
const (
	FaceUp uint8 = iota
	FaceDown
	FaceLeft
	FaceRight
)

// EntityKind classifies scene entities.
type EntityKind uint8

const (
	EntityPlayer EntityKind = iota
	EntityFollower
	EntityNPC
	EntityMonster
	EntityProp
)

// Entity is one actor or prop on the current scene.
type Entity struct {
	ID       vm.EntityID
	Kind     EntityKind
	X, Y     int
	Facing   uint8
	Speed    uint8
	Channel  vm.ThreadID // sprite/anim channel owner, 0 when idle
	Priority uint8
	Visible  bool
}

// State is the whole mutable world. One exists per running game.
type State struct {
	flags [vm.NumFlags / 8]byte
	vars  [vm.NumVars]uint16

	entities map[vm.EntityID]*Entity

	members   [MemberCount]Member
	active    []MemberID
	inventory map[uint16]uint8
	gold      uint32
	silver    uint16

	battle *Battle

	curMap container.RecordID
	locX   int
	locY   int
	locale string

	rng       uint32
	playTicks uint64
	tickHz    int

	saveAllowed bool
	number      int
	noteNames   map[string]string
}

// NewGame builds the start-of-game world: default names, the leader
// alone in the party, empty inventory, a fixed random seed.
func NewGame() *State {
	s := &State{
		entities:  make(map[vm.EntityID]*Entity),
		inventory: make(map[uint16]uint8),
		noteNames: make(map[string]string),
		tickHz:    DefaultTickHz,
		rng:       1,
	}
	for i := range s.members {
		s.members[i].Name = memberNames[i]
	}
	s.members[Crono].Recruited = true
	s.active = []MemberID{Crono}
	return s
}

// ---------------------------------------------------------------------------
// Script memory
// ---------------------------------------------------------------------------

// Flag ids address bits: id = byte*8 + bit.

func (s *State) Flag(id uint16) bool { return s.flags[id>>3]&(1<<(id&7)) != 0 }

func (s *State) SetFlag(id uint16, on bool) {
	if on {
		s.flags[id>>3] |= 1 << (id & 7)
	} else {
		s.flags[id>>3] &^= 1 << (id & 7)
	}
}

func (s *State) Var(idx uint16) uint16       { return s.vars[idx] }
func (s *State) SetVar(idx uint16, v uint16) { s.vars[idx] = v }

// Var8 reads the byte view of variable memory: even indices address a
// cell's low byte, odd its high byte.
func (s *State) Var8(idx uint16) uint8 {
	if idx&1 == 1 {
		return uint8(s.vars[idx>>1] >> 8)
	}
	return uint8(s.vars[idx>>1])
}

func (s *State) SetVar8(idx uint16, v uint8) {
	cell := &s.vars[idx>>1]
	if idx&1 == 1 {
		*cell = *cell&0x00FF | uint16(v)<<8
	} else {
		*cell = *cell&0xFF00 | uint16(v)
	}
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// Spawn places an entity on the scene, replacing any previous holder
// of its id.
func (s *State) Spawn(e Entity) *Entity {
	ent := e
	s.entities[e.ID] = &ent
	return &ent
}

// Entity looks up a scene entity.
func (s *State) Entity(id vm.EntityID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Despawn removes an entity; unknown ids are ignored.
func (s *State) Despawn(id vm.EntityID) { delete(s.entities, id) }

// ClearEntities empties the scene, as a map change does.
func (s *State) ClearEntities() { s.entities = make(map[vm.EntityID]*Entity) }

// Entities returns the scene in id order.
func (s *State) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entity operations scripts reach through natives. Unknown ids are
// ordinary (a despawned NPC), not faults.

func (s *State) MoveEntity(id vm.EntityID, dx, dy int) {
	if e, ok := s.entities[id]; ok {
		e.X += dx
		e.Y += dy
	}
}

func (s *State) WarpEntity(id vm.EntityID, x, y int) {
	if e, ok := s.entities[id]; ok {
		e.X = x
		e.Y = y
	}
}

func (s *State) SetFacing(id vm.EntityID, facing uint8) {
	if e, ok := s.entities[id]; ok {
		e.Facing = facing
	}
}

func (s *State) SetSpeed(id vm.EntityID, speed uint8) {
	if e, ok := s.entities[id]; ok {
		e.Speed = speed
	}
}

// EntityIdle releases the sprite/anim channel so ambient behavior
// resumes.
func (s *State) EntityIdle(id vm.EntityID) {
	if e, ok := s.entities[id]; ok {
		e.Channel = 0
	}
}

// ---------------------------------------------------------------------------
// Script-visible values
// ---------------------------------------------------------------------------

// Rand advances the persisted generator and returns a value in
// [lo, hi]. Same multiplier as the container stream mask; the shipped
// game used one LCG family everywhere.
func (s *State) Rand(lo, hi int32) int32 {
	if hi <= lo {
		return lo
	}
	s.rng = s.rng*0x41C64E6D + 12345
	span := uint32(hi-lo) + 1
	return lo + int32((s.rng>>16)%span)
}

// SeedRand resets the generator. New games start from a fixed seed so
// a fresh run is reproducible.
func (s *State) SeedRand(seed uint32) { s.rng = seed }

// AdvanceTick accrues play time; the engine calls it once per tick.
func (s *State) AdvanceTick() { s.playTicks++ }

func (s *State) PlayTimeSeconds() int32 {
	if s.tickHz <= 0 {
		return 0
	}
	return int32(s.playTicks / uint64(s.tickHz))
}

// SetTickHz adjusts the play-time clock to the configured rate.
func (s *State) SetTickHz(hz int) {
	if hz > 0 {
		s.tickHz = hz
	}
}

// ---------------------------------------------------------------------------
// Location and saving
// ---------------------------------------------------------------------------

// SetLocation records the resume point written into saves; name is the
// display string the load menu shows.
func (s *State) SetLocation(m container.RecordID, x, y int, name string) {
	s.curMap = m
	s.locX = x
	s.locY = y
	s.locale = name
}

// Location reports the resume point.
func (s *State) Location() (container.RecordID, int, int) {
	return s.curMap, s.locX, s.locY
}

// LocationName is the display string for the current area.
func (s *State) LocationName() string { return s.locale }

func (s *State) SetSaveAllowed(on bool) { s.saveAllowed = on }
func (s *State) SaveAllowed() bool      { return s.saveAllowed }

// ---------------------------------------------------------------------------
// Dialogue values
// ---------------------------------------------------------------------------

// SetNumber sets the value the number glyph renders.
func (s *State) SetNumber(n int) { s.number = n }

func (s *State) Number() int { return s.number }

// SetNoteName binds a non-roster name tag (item, tech) for the next
// message that references it.
func (s *State) SetNoteName(tag, name string) { s.noteNames[tag] = name }
