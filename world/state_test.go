package world

import (
	"testing"

	"github.com/epochengine/epoch/host"
	"github.com/epochengine/epoch/vm"
)

// The state is lent to the interpreter and the native table directly.
var (
	_ vm.Memory  = (*State)(nil)
	_ host.World = (*State)(nil)
)

func TestFlagBitAddressing(t *testing.T) {
	s := NewGame()
	s.SetFlag(0x1234, true)
	if !s.Flag(0x1234) {
		t.Fatal("flag not set")
	}
	if s.Flag(0x1233) || s.Flag(0x1235) {
		t.Fatal("neighboring bits disturbed")
	}
	s.SetFlag(0x1234, false)
	if s.Flag(0x1234) {
		t.Fatal("flag not cleared")
	}

	// Bits of one byte stay independent.
	for b := uint16(0); b < 8; b++ {
		s.SetFlag(0x40*8+b, b%2 == 0)
	}
	for b := uint16(0); b < 8; b++ {
		if s.Flag(0x40*8+b) != (b%2 == 0) {
			t.Fatalf("bit %d wrong", b)
		}
	}
}

func TestVarByteViews(t *testing.T) {
	s := NewGame()
	s.SetVar(1, 0xBEEF)
	if s.Var8(2) != 0xEF || s.Var8(3) != 0xBE {
		t.Fatalf("byte views = %#x %#x, want 0xef 0xbe", s.Var8(2), s.Var8(3))
	}
	s.SetVar8(2, 0x11)
	if s.Var(1) != 0xBE11 {
		t.Fatalf("after low write: %#x, want 0xbe11", s.Var(1))
	}
	s.SetVar8(3, 0x22)
	if s.Var(1) != 0x2211 {
		t.Fatalf("after high write: %#x, want 0x2211", s.Var(1))
	}
}

func TestRandDeterministicAndBounded(t *testing.T) {
	a, b := NewGame(), NewGame()
	for i := 0; i < 1000; i++ {
		va, vb := a.Rand(5, 10), b.Rand(5, 10)
		if va != vb {
			t.Fatalf("draw %d diverged: %d vs %d", i, va, vb)
		}
		if va < 5 || va > 10 {
			t.Fatalf("draw %d out of range: %d", i, va)
		}
	}
	if got := NewGame().Rand(7, 7); got != 7 {
		t.Fatalf("degenerate range = %d, want 7", got)
	}
	if got := NewGame().Rand(9, 2); got != 9 {
		t.Fatalf("reversed range = %d, want lo", got)
	}
}

func TestEntityOps(t *testing.T) {
	s := NewGame()
	s.Spawn(Entity{ID: 3, Kind: EntityNPC, X: 10, Y: 20, Visible: true})

	s.MoveEntity(3, -1, 2)
	s.SetFacing(3, FaceLeft)
	s.SetSpeed(3, 2)
	e, ok := s.Entity(3)
	if !ok || e.X != 9 || e.Y != 22 || e.Facing != FaceLeft || e.Speed != 2 {
		t.Fatalf("after move: %+v", e)
	}

	s.WarpEntity(3, 5, 6)
	if e.X != 5 || e.Y != 6 {
		t.Fatalf("after warp: %+v", e)
	}

	e.Channel = 7
	s.EntityIdle(3)
	if e.Channel != 0 {
		t.Fatal("channel not released")
	}

	// Unknown ids are no-ops.
	s.MoveEntity(99, 1, 1)
	s.EntityIdle(99)

	s.Despawn(3)
	if _, ok := s.Entity(3); ok {
		t.Fatal("despawn left the entity behind")
	}
}

func TestEntitiesOrdered(t *testing.T) {
	s := NewGame()
	for _, id := range []vm.EntityID{5, 2, 9} {
		s.Spawn(Entity{ID: id})
	}
	got := s.Entities()
	if len(got) != 3 || got[0].ID != 2 || got[1].ID != 5 || got[2].ID != 9 {
		t.Fatalf("order wrong: %+v", got)
	}
	s.ClearEntities()
	if len(s.Entities()) != 0 {
		t.Fatal("clear left entities")
	}
}

func TestInventoryCaps(t *testing.T) {
	s := NewGame()
	if got := s.AddItem(7, 50); got != 50 {
		t.Fatalf("first add = %d", got)
	}
	if got := s.AddItem(7, 60); got != 49 {
		t.Fatalf("capped add = %d, want 49", got)
	}
	if got := s.ItemCount(7); got != MaxStack {
		t.Fatalf("count = %d, want %d", got, MaxStack)
	}
	if got := s.AddItem(7, 1); got != 0 {
		t.Fatalf("add at cap = %d, want 0", got)
	}
	if got := s.RemoveItem(7, 150); got != 99 {
		t.Fatalf("drain = %d, want 99", got)
	}
	if s.HasItem(7) {
		t.Fatal("item survives drain")
	}
	if s.AddItem(7, -5) != 0 || s.RemoveItem(7, 0) != 0 {
		t.Fatal("non-positive quantities should apply nothing")
	}
}

func TestGoldClamped(t *testing.T) {
	s := NewGame()
	s.AddGold(500)
	s.AddGold(-200)
	if s.Gold() != 300 {
		t.Fatalf("gold = %d, want 300", s.Gold())
	}
	s.AddGold(-1000)
	if s.Gold() != 0 {
		t.Fatalf("gold = %d, want 0", s.Gold())
	}
	s.AddGold(MaxGold)
	s.AddGold(MaxGold)
	if s.Gold() != MaxGold {
		t.Fatalf("gold = %d, want cap", s.Gold())
	}
}

func TestSilverPointsClamped(t *testing.T) {
	s := NewGame()
	s.AddSilverPoints(10)
	s.AddSilverPoints(-30)
	if s.SilverPoints() != 0 {
		t.Fatalf("silver = %d, want 0", s.SilverPoints())
	}
	s.AddSilverPoints(70000)
	if s.SilverPoints() != 0xFFFF {
		t.Fatalf("silver = %d, want 0xffff", s.SilverPoints())
	}
}

func TestPartyMembership(t *testing.T) {
	s := NewGame()
	if s.Leader() == nil || s.Leader().Name != "Crono" {
		t.Fatal("new game has no leader")
	}
	if !s.AddPartyMember(uint8(Marle)) || !s.AddPartyMember(uint8(Frog)) {
		t.Fatal("joining failed")
	}
	if s.AddPartyMember(uint8(Marle)) {
		t.Fatal("duplicate join accepted")
	}
	if s.AddPartyMember(uint8(Lucca)) {
		t.Fatal("fourth member accepted")
	}
	if s.AddPartyMember(99) {
		t.Fatal("out-of-range member accepted")
	}
	if !s.RemovePartyMember(uint8(Frog)) {
		t.Fatal("leave failed")
	}
	if s.RemovePartyMember(uint8(Frog)) {
		t.Fatal("double leave accepted")
	}
	if !s.Member(Frog).Recruited {
		t.Fatal("leaving un-recruited the character")
	}
	s.RemovePartyMember(uint8(Marle))
	if s.RemovePartyMember(uint8(Crono)) {
		t.Fatal("last member left the party")
	}
	if got := s.Party(); len(got) != 1 || got[0] != Crono {
		t.Fatalf("party = %v", got)
	}
}

func TestNameResolution(t *testing.T) {
	s := NewGame()
	if name, ok := s.Name(""); !ok || name != "Crono" {
		t.Fatalf("leader = %q %v", name, ok)
	}
	s.Member(Crono).Name = "Akira"
	if name, _ := s.Name(""); name != "Akira" {
		t.Fatalf("renamed leader = %q", name)
	}
	if name, _ := s.Name("CRO"); name != "Akira" {
		t.Fatalf("tag after rename = %q", name)
	}
	if name, _ := s.Name("MAR"); name != "Marle" {
		t.Fatalf("MAR = %q", name)
	}
	if _, ok := s.Name("XYZ"); ok {
		t.Fatal("unknown tag resolved")
	}
	s.SetNoteName("ITM", "Tonic")
	if name, ok := s.Name("ITM"); !ok || name != "Tonic" {
		t.Fatalf("note name = %q %v", name, ok)
	}

	// Nickname falls back to the name until one is set.
	if nick, ok := s.Nickname("CRO"); !ok || nick != "Akira" {
		t.Fatalf("fallback nick = %q %v", nick, ok)
	}
	s.Member(Crono).Nick = "Aki"
	if nick, _ := s.Nickname("CRO"); nick != "Aki" {
		t.Fatalf("nick = %q", nick)
	}
	if _, ok := s.Nickname("ZZZ"); ok {
		t.Fatal("unknown nick tag resolved")
	}

	s.AddPartyMember(uint8(Ayla))
	if name, ok := s.SlotName(2); !ok || name != "Ayla" {
		t.Fatalf("slot 2 = %q %v", name, ok)
	}
	if _, ok := s.SlotName(3); ok {
		t.Fatal("empty slot resolved")
	}
	if _, ok := s.SlotName(0); ok {
		t.Fatal("slot 0 resolved")
	}

	s.SetNumber(42)
	if s.Number() != 42 {
		t.Fatal("number glyph value lost")
	}
}

func TestHealParty(t *testing.T) {
	s := NewGame()
	c := s.Member(Crono)
	c.HP = Pool{Current: 10, Max: 70}
	c.MP = Pool{Current: 2, Max: 8}
	m := s.Member(Marle)
	m.HP = Pool{Current: 5, Max: 65}

	s.HealParty()
	if c.HP.Current != 70 || c.MP.Current != 8 {
		t.Fatalf("leader pools = %+v %+v", c.HP, c.MP)
	}
	if m.HP.Current != 5 {
		t.Fatal("unrecruited character was healed")
	}
}

func TestBattleModel(t *testing.T) {
	s := NewGame()
	cr := s.Member(Crono)
	cr.HP = Pool{Current: 40, Max: 70}

	s.BeginBattle(map[vm.EntityID]*Combatant{
		1: PartyCombatant(cr),
		8: EnemyCombatant(Enemy{Name: "Naga", TP: 2, XP: 30}, Pool{Current: 80, Max: 80}, Stats{}),
		9: EnemyCombatant(Enemy{Name: "Imp", Flags: EnemyNoDespawn}, Pool{Current: 12, Max: 12}, Stats{}),
	})
	if !s.InBattle() {
		t.Fatal("battle not open")
	}
	if cur, max := s.BattleHP(1); cur != 40 || max != 70 {
		t.Fatalf("party hp = %d/%d", cur, max)
	}
	if got := s.LivingEnemies(); got != 2 {
		t.Fatalf("living = %d, want 2", got)
	}

	s.DealDamage(9, 50)
	if got := s.LivingEnemies(); got != 1 {
		t.Fatalf("living after kill = %d, want 1", got)
	}
	s.DealDamage(8, -500)
	if cur, _ := s.BattleHP(8); cur != 80 {
		t.Fatalf("heal past max = %d, want 80", cur)
	}
	s.DealDamage(1, 15)
	if cur, _ := s.BattleHP(1); cur != 25 {
		t.Fatalf("party damage = %d, want 25", cur)
	}

	if s.Moved(8) {
		t.Fatal("fresh combatant already moved")
	}
	s.MarkMoved(8)
	if !s.Moved(8) {
		t.Fatal("mark lost")
	}
	s.MarkMoved(77)
	if s.Moved(77) {
		t.Fatal("absent actor moved")
	}

	c, _ := s.Combatant(8)
	c.Status[2] = 0x42
	if !s.CheckStatus(8, 2, 0x40) {
		t.Fatal("status bit not seen")
	}
	if s.CheckStatus(8, 2, 0x01) || s.CheckStatus(8, 200, 1) {
		t.Fatal("status misread")
	}

	if cur, max := s.BattleHP(42); cur != 0 || max != 0 {
		t.Fatal("absent actor has hit points")
	}

	s.EndBattle()
	if s.InBattle() {
		t.Fatal("battle still open")
	}
	if cur, _ := s.BattleHP(1); cur != 0 {
		t.Fatal("battle reads survive the encounter")
	}
	if cr.HP.Current != 25 {
		t.Fatalf("member pool = %d, damage should persist", cr.HP.Current)
	}
}
