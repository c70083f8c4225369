package world

import "github.com/epochengine/epoch/vm"

// Enemy attribute flags.
const (
	EnemyBoss      uint16 = 1
	EnemyNoDespawn uint16 = 2 // keep the corpse on the scene
)

// Enemy carries the per-species data an encounter spawns with.
type Enemy struct {
	Flags uint16
	Name  string
	TP    uint16
	XP    uint32
}

// Combatant is one battle participant. Party members fight with their
// roster pools, so damage taken in battle persists; enemies carry
// their own.
type Combatant struct {
	Member *Member // nil for enemies
	Enemy  *Enemy  // nil for party members
	HP     Pool
	MP     Pool
	Stats  Stats
	Status [8]uint8
	Moved  bool
}

func (c *Combatant) hp() *Pool {
	if c.Member != nil {
		return &c.Member.HP
	}
	return &c.HP
}

// PartyCombatant enrolls a roster member in the encounter.
func PartyCombatant(m *Member) *Combatant {
	return &Combatant{Member: m, Stats: m.Stats}
}

// EnemyCombatant spawns an enemy instance.
func EnemyCombatant(e Enemy, hp Pool, stats Stats) *Combatant {
	en := e
	return &Combatant{Enemy: &en, HP: hp, Stats: stats}
}

// Battle is the active encounter, keyed by the entity ids the battle
// scene assigned its participants.
type Battle struct {
	combatants map[vm.EntityID]*Combatant
}

// BeginBattle opens an encounter; one already in progress is replaced.
func (s *State) BeginBattle(parts map[vm.EntityID]*Combatant) {
	s.battle = &Battle{combatants: parts}
}

// EndBattle closes the encounter. Participant state written through
// member pools stays; enemy instances are dropped.
func (s *State) EndBattle() { s.battle = nil }

func (s *State) InBattle() bool { return s.battle != nil }

// Combatant looks up a participant of the active encounter.
func (s *State) Combatant(id vm.EntityID) (*Combatant, bool) {
	if s.battle == nil {
		return nil, false
	}
	c, ok := s.battle.combatants[id]
	return c, ok
}

// BattleHP reports a participant's pool; an absent actor reads 0/0,
// which scripted death checks treat as dead.
func (s *State) BattleHP(actor vm.EntityID) (cur, max int16) {
	c, ok := s.Combatant(actor)
	if !ok {
		return 0, 0
	}
	p := c.hp()
	return p.Current, p.Max
}

// CheckStatus tests status bytes at offset against a bit mask.
func (s *State) CheckStatus(actor vm.EntityID, offset, bits uint8) bool {
	c, ok := s.Combatant(actor)
	return ok && int(offset) < len(c.Status) && c.Status[offset]&bits != 0
}

// MarkMoved records that the actor took its turn.
func (s *State) MarkMoved(actor vm.EntityID) {
	if c, ok := s.Combatant(actor); ok {
		c.Moved = true
	}
}

func (s *State) Moved(actor vm.EntityID) bool {
	c, ok := s.Combatant(actor)
	return ok && c.Moved
}

// LivingEnemies counts enemy participants still standing.
func (s *State) LivingEnemies() int {
	if s.battle == nil {
		return 0
	}
	n := 0
	for _, c := range s.battle.combatants {
		if c.Enemy != nil && c.hp().Current > 0 {
			n++
		}
	}
	return n
}

// DealDamage applies amount to the target's hit points, clamped into
// the pool. Negative amounts heal.
func (s *State) DealDamage(target vm.EntityID, amount int32) {
	c, ok := s.Combatant(target)
	if !ok {
		return
	}
	p := c.hp()
	v := int32(p.Current) - amount
	if v < 0 {
		v = 0
	}
	if v > int32(p.Max) {
		v = int32(p.Max)
	}
	p.Current = int16(v)
}
