package host

import "github.com/epochengine/epoch/vm"

// World is the game-state surface native calls operate on. The engine
// lends its world to the table per call; the scheduler is
// single-threaded, so implementations never see concurrent use and
// every mutation is visible to the next thread scheduled in the same
// tick.
type World interface {
	Namer

	// Entities. Unknown entity ids are ignored; a script poking a
	// despawned NPC is ordinary, not a fault.
	MoveEntity(e vm.EntityID, dx, dy int)
	WarpEntity(e vm.EntityID, x, y int)
	SetFacing(e vm.EntityID, facing uint8)
	SetSpeed(e vm.EntityID, speed uint8)
	EntityIdle(e vm.EntityID)

	// Script-visible values.
	Rand(lo, hi int32) int32
	PlayTimeSeconds() int32

	// Party and inventory. Add and Remove return the quantity
	// actually applied after stack caps.
	AddItem(item uint16, qty int) int
	RemoveItem(item uint16, qty int) int
	HasItem(item uint16) bool
	AddGold(delta int32)
	AddSilverPoints(delta int32)
	HealParty()
	AddPartyMember(m uint8) bool
	RemovePartyMember(m uint8) bool

	// Battle model. An empty battle slot reads as 0/0 HP.
	BattleHP(actor vm.EntityID) (cur, max int16)
	CheckStatus(actor vm.EntityID, offset, bits uint8) bool
	MarkMoved(actor vm.EntityID)
	Moved(actor vm.EntityID) bool
	LivingEnemies() int
	DealDamage(target vm.EntityID, amount int32)

	// Saving.
	SetSaveAllowed(on bool)
}

// Namer resolves dialogue name tokens to display strings. Tags are the
// three-letter member codes carried by the markup; the empty tag names
// the leader. A false return shows the missing-text placeholder.
type Namer interface {
	Name(tag string) (string, bool)
	Nickname(tag string) (string, bool)
	SlotName(slot int) (string, bool)
	Number() int
}
