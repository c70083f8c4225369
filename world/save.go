package world

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/epochengine/epoch/container"
	"github.com/epochengine/epoch/vm"
)

// Save envelope: magic, format version, creation time, then the state
// as canonical CBOR in a zstd frame.
const (
	saveMagic   = "EPSV"
	saveVersion = 1
	saveHdrLen  = 14
)

var (
	ErrBadSave     = errors.New("bad save data")
	ErrSaveVersion = errors.New("unsupported save version")
)

// cborEnc is the canonical mode every save uses. Map ordering is
// deterministic, so identical states produce identical bodies.
var cborEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEnc = em
}

// saveBody is the persisted shape of a State. Scene entities and the
// battle are rebuilt from map data on load and do not persist. Bump
// saveVersion when changing the shape.
type saveBody struct {
	Flags     []byte             `cbor:"flags"`
	Vars      []uint16           `cbor:"vars"`
	Members   []Member           `cbor:"members"`
	Active    []MemberID         `cbor:"active"`
	Inventory map[uint16]uint8   `cbor:"inventory"`
	Gold      uint32             `cbor:"gold"`
	Silver    uint16             `cbor:"silver"`
	Map       container.RecordID `cbor:"map"`
	X         int                `cbor:"x"`
	Y         int                `cbor:"y"`
	Location  string             `cbor:"location"`
	RNG       uint32             `cbor:"rng"`
	PlayTicks uint64             `cbor:"playTicks"`
	TickHz    int                `cbor:"tickHz"`
}

// Save serializes the state. now stamps the envelope for the slot
// index; it does not affect the body, so two saves of the same state
// differ only in the stamp.
func (s *State) Save(now time.Time) ([]byte, error) {
	body, err := cborEnc.Marshal(s.body())
	if err != nil {
		return nil, fmt.Errorf("encoding save: %w", err)
	}

	zw, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("opening zstd frame: %w", err)
	}
	defer zw.Close()

	out := make([]byte, saveHdrLen, saveHdrLen+len(body)/2)
	copy(out, saveMagic)
	binary.LittleEndian.PutUint16(out[4:6], saveVersion)
	binary.LittleEndian.PutUint64(out[6:14], uint64(now.Unix()))
	return zw.EncodeAll(body, out), nil
}

func (s *State) body() saveBody {
	return saveBody{
		Flags:     append([]byte(nil), s.flags[:]...),
		Vars:      append([]uint16(nil), s.vars[:]...),
		Members:   append([]Member(nil), s.members[:]...),
		Active:    append([]MemberID(nil), s.active...),
		Inventory: maps.Clone(s.inventory),
		Gold:      s.gold,
		Silver:    s.silver,
		Map:       s.curMap,
		X:         s.locX,
		Y:         s.locY,
		Location:  s.locale,
		RNG:       s.rng,
		PlayTicks: s.playTicks,
		TickHz:    s.tickHz,
	}
}

// Load rebuilds a State from Save output, returning the envelope's
// creation time alongside.
func Load(data []byte) (*State, time.Time, error) {
	if len(data) < saveHdrLen || string(data[:4]) != saveMagic {
		return nil, time.Time{}, fmt.Errorf("%w: missing envelope", ErrBadSave)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != saveVersion {
		return nil, time.Time{}, fmt.Errorf("%w: %d", ErrSaveVersion, v)
	}
	created := time.Unix(int64(binary.LittleEndian.Uint64(data[6:14])), 0)

	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening zstd frame: %w", err)
	}
	defer zr.Close()
	raw, err := zr.DecodeAll(data[saveHdrLen:], nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrBadSave, err)
	}

	var b saveBody
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrBadSave, err)
	}
	s, err := b.state()
	if err != nil {
		return nil, time.Time{}, err
	}
	return s, created, nil
}

func (b *saveBody) state() (*State, error) {
	s := &State{
		entities:  make(map[vm.EntityID]*Entity),
		inventory: make(map[uint16]uint8),
		noteNames: make(map[string]string),
		gold:      b.Gold,
		silver:    b.Silver,
		curMap:    b.Map,
		locX:      b.X,
		locY:      b.Y,
		locale:    b.Location,
		rng:       b.RNG,
		playTicks: b.PlayTicks,
		tickHz:    b.TickHz,
	}
	if len(b.Flags) != len(s.flags) {
		return nil, fmt.Errorf("%w: flag block %d bytes", ErrBadSave, len(b.Flags))
	}
	copy(s.flags[:], b.Flags)
	if len(b.Vars) != len(s.vars) {
		return nil, fmt.Errorf("%w: variable block %d cells", ErrBadSave, len(b.Vars))
	}
	copy(s.vars[:], b.Vars)
	if len(b.Members) != MemberCount {
		return nil, fmt.Errorf("%w: roster of %d", ErrBadSave, len(b.Members))
	}
	copy(s.members[:], b.Members)
	if len(b.Active) == 0 || len(b.Active) > MaxParty {
		return nil, fmt.Errorf("%w: party of %d", ErrBadSave, len(b.Active))
	}
	seen := [MemberCount]bool{}
	for _, id := range b.Active {
		if int(id) >= MemberCount || seen[id] || !s.members[id].Recruited {
			return nil, fmt.Errorf("%w: party member %d", ErrBadSave, id)
		}
		seen[id] = true
	}
	s.active = append([]MemberID(nil), b.Active...)
	if s.tickHz <= 0 {
		return nil, fmt.Errorf("%w: tick rate %d", ErrBadSave, s.tickHz)
	}
	maps.Copy(s.inventory, b.Inventory)
	return s, nil
}
