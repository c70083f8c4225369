package world

// MemberID indexes the roster.
type MemberID uint8

const (
	Crono MemberID = iota
	Marle
	Lucca
	Robo
	Frog
	Ayla
	Magus
)

// MemberCount is the roster size.
const MemberCount = 7

// MaxParty is the active party size.
const MaxParty = 3

// MaxStack caps one inventory line.
const MaxStack = 99

// MaxGold caps the purse.
const MaxGold = 9999999

var memberNames = [MemberCount]string{
	"Crono", "Marle", "Lucca", "Robo", "Frog", "Ayla", "Magus",
}

// memberTags maps dialogue name tags to roster entries.
var memberTags = map[string]MemberID{
	"CRO": Crono,
	"MAR": Marle,
	"LUC": Lucca,
	"ROB": Robo,
	"FRO": Frog,
	"AYL": Ayla,
	"MAG": Magus,
}

// StatPair is a battle stat with its unmodified base.
type StatPair struct {
	Current int16
	Normal  int16
}

// Pool is a spendable resource, clamped to [0, Max].
type Pool struct {
	Current int16
	Max     int16
}

// Experience tracks progress to the next level.
type Experience struct {
	Current int32
	Next    int32
}

// Stats is the battle stat block shared by party members and enemies.
type Stats struct {
	Attack       StatPair
	Defense      StatPair
	Strength     StatPair
	Speed        StatPair
	Accuracy     StatPair
	Evasion      StatPair
	Magic        StatPair
	MagicDefense StatPair
	Stamina      StatPair
}

// Armor classes gate who can equip a piece.
const (
	ArmorMale uint8 = iota
	ArmorFemale
	ArmorUnisex
)

// Gear is an equipped weapon or armor piece: its class and the stat
// bonuses it grants.
type Gear struct {
	Class        uint8
	HP           int16
	MP           int16
	Strength     int16
	Speed        int16
	Evasion      int16
	Accuracy     int16
	Defense      int16
	MagicDefense int16
	Magic        int16
	Attack       int16
	Stamina      int16
}

// Member is one roster character. Every character exists from the
// start; Recruited marks whether the story has added them.
type Member struct {
	Name      string
	Nick      string
	Recruited bool
	Stats     Stats
	HP        Pool
	MP        Pool
	XP        Experience
	TP        uint16
	Weapon    Gear
	Armor     Gear
}

// Member returns the roster entry for id.
func (s *State) Member(id MemberID) *Member { return &s.members[id] }

// Party returns the active members in slot order.
func (s *State) Party() []MemberID {
	return append([]MemberID(nil), s.active...)
}

// Leader is the member in the first party slot, nil when the party is
// somehow empty.
func (s *State) Leader() *Member {
	if len(s.active) == 0 {
		return nil
	}
	return &s.members[s.active[0]]
}

// AddPartyMember recruits m and appends it to the active party. False
// when the id is out of range, the party is full, or m is already in
// it.
func (s *State) AddPartyMember(m uint8) bool {
	if int(m) >= MemberCount || len(s.active) >= MaxParty {
		return false
	}
	id := MemberID(m)
	for _, a := range s.active {
		if a == id {
			return false
		}
	}
	s.members[id].Recruited = true
	s.active = append(s.active, id)
	return true
}

// RemovePartyMember drops m from the active party; the character stays
// recruited. The last member cannot leave.
func (s *State) RemovePartyMember(m uint8) bool {
	id := MemberID(m)
	for i, a := range s.active {
		if a != id {
			continue
		}
		if len(s.active) == 1 {
			return false
		}
		s.active = append(s.active[:i], s.active[i+1:]...)
		return true
	}
	return false
}

// HealParty restores every recruited character to full.
func (s *State) HealParty() {
	for i := range s.members {
		m := &s.members[i]
		if !m.Recruited {
			continue
		}
		m.HP.Current = m.HP.Max
		m.MP.Current = m.MP.Max
	}
}

// ---------------------------------------------------------------------------
// Inventory and currency
// ---------------------------------------------------------------------------

// AddItem grants qty of item, returning how many actually fit under
// the stack cap.
func (s *State) AddItem(item uint16, qty int) int {
	if qty <= 0 {
		return 0
	}
	have := int(s.inventory[item])
	add := qty
	if add > MaxStack-have {
		add = MaxStack - have
	}
	if add <= 0 {
		return 0
	}
	s.inventory[item] = uint8(have + add)
	return add
}

// RemoveItem takes up to qty of item, returning how many were held.
func (s *State) RemoveItem(item uint16, qty int) int {
	if qty <= 0 {
		return 0
	}
	have := int(s.inventory[item])
	take := qty
	if take > have {
		take = have
	}
	if take == have {
		delete(s.inventory, item)
	} else {
		s.inventory[item] = uint8(have - take)
	}
	return take
}

func (s *State) HasItem(item uint16) bool { return s.inventory[item] > 0 }

// ItemCount reports the held quantity.
func (s *State) ItemCount(item uint16) int { return int(s.inventory[item]) }

// AddGold adjusts the purse, clamped to [0, MaxGold].
func (s *State) AddGold(delta int32) {
	if delta < 0 {
		d := uint32(-delta)
		if d >= s.gold {
			s.gold = 0
		} else {
			s.gold -= d
		}
		return
	}
	s.gold += uint32(delta)
	if s.gold > MaxGold {
		s.gold = MaxGold
	}
}

func (s *State) Gold() uint32 { return s.gold }

// AddSilverPoints adjusts the fair tally, clamped at zero.
func (s *State) AddSilverPoints(delta int32) {
	v := int32(s.silver) + delta
	if v < 0 {
		v = 0
	}
	if v > 0xFFFF {
		v = 0xFFFF
	}
	s.silver = uint16(v)
}

func (s *State) SilverPoints() uint16 { return s.silver }

// ---------------------------------------------------------------------------
// Name resolution
// ---------------------------------------------------------------------------

// Name resolves a dialogue name tag. The empty tag names the leader,
// roster tags name members, and anything else comes from the note
// table (item and tech names bound before the message opens).
func (s *State) Name(tag string) (string, bool) {
	if tag == "" {
		if len(s.active) == 0 {
			return "", false
		}
		return s.members[s.active[0]].Name, true
	}
	if id, ok := memberTags[tag]; ok {
		return s.members[id].Name, true
	}
	n, ok := s.noteNames[tag]
	return n, ok
}

// Nickname resolves a short-name tag, falling back to the full name
// when no nickname was chosen.
func (s *State) Nickname(tag string) (string, bool) {
	id, ok := memberTags[tag]
	if !ok {
		return "", false
	}
	if m := &s.members[id]; m.Nick != "" {
		return m.Nick, true
	}
	return s.members[id].Name, true
}

// SlotName names the member in party slot 1..3.
func (s *State) SlotName(slot int) (string, bool) {
	if slot < 1 || slot > len(s.active) {
		return "", false
	}
	return s.members[s.active[slot-1]].Name, true
}
