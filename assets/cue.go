package assets

import (
	"strings"

	"github.com/epochengine/epoch/container"
)

// SEAD bank geometry.
const (
	seadHeaderSize  = 16
	seadNameSize    = 16
	seadChunkSize   = 16
	seadSndHdrSize  = 40
	seadMatHdrSize  = 18
	seadStreamSize  = 36
	maxSeadChannels = 8
)

// Cue is the playable metadata of one audio stream. Payload decoding
// belongs to the audio collaborator; play/stop natives only need ids.
type Cue struct {
	ID         uint16
	Channels   uint8
	Codec      uint8
	SampleRate uint32
	LoopStart  uint32
	LoopEnd    uint32
	StreamSize uint32
}

// Sound is a named sequence group inside a bank.
type Sound struct {
	Name     string
	SeqStart int
	SeqCount int
}

// CueTable is a decoded audio bank: the bank's sounds and the stream
// material table, addressable by cue id.
type CueTable struct {
	ID     container.RecordID
	BankID uint32
	Name   string
	Sounds []Sound
	Cues   []Cue

	byID map[uint16]int
}

func (t *CueTable) AssetKind() container.Kind { return container.KindCueTable }

func (t *CueTable) MemSize() int {
	n := 96 + len(t.Cues)*24
	for _, s := range t.Sounds {
		n += 24 + len(s.Name)
	}
	return n
}

// Cue resolves a stream by cue id.
func (t *CueTable) Cue(id uint16) (*Cue, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.Cues[i], true
}

// DecodeCueTable decodes an audio bank record.
func DecodeCueTable(rec *container.AssetRecord) (*CueTable, error) {
	r := newReader(rec.Data)

	bankID, err1 := r.u32()
	_, err2 := r.u8() // version
	_, err3 := r.u8() // flags
	_, err4 := r.u16() // chunk alignment
	chunkCount, err5 := r.u8()
	nameLen, err6 := r.u8()
	_, err7 := r.u16()
	fileSize, err8 := r.u32()
	for _, err := range []error{err1, err2, err3, err4, err5, err6, err7, err8} {
		if err != nil {
			return nil, malformedErr(rec, err, "bank header")
		}
	}
	if int(fileSize) > len(rec.Data) {
		return nil, malformed(rec, "bank declares %d bytes in %d", fileSize, len(rec.Data))
	}
	if nameLen > seadNameSize {
		return nil, malformed(rec, "bank name length %d", nameLen)
	}

	nameRaw, err := r.bytes(seadNameSize)
	if err != nil {
		return nil, malformedErr(rec, err, "bank name")
	}
	name := strings.TrimRight(string(nameRaw[:nameLen]), "\x00")

	t := &CueTable{
		ID:     rec.ID,
		BankID: bankID,
		Name:   name,
		byID:   make(map[uint16]int),
	}

	for ci := 0; ci < int(chunkCount); ci++ {
		fourcc, err1 := r.bytes(4)
		_, err2 := r.u8() // chunk version
		_, err3 := r.u8()
		_, err4 := r.u16() // header size
		offs, err5 := r.u32()
		_, err6 := r.u32()
		for _, err := range []error{err1, err2, err3, err4, err5, err6} {
			if err != nil {
				return nil, malformedErr(rec, err, "chunk %d", ci)
			}
		}
		if int(offs) > len(rec.Data) {
			return nil, malformed(rec, "chunk %d offset %#x outside bank", ci, offs)
		}

		switch string(fourcc) {
		case "snd ":
			if err := t.readSound(rec, int(offs)); err != nil {
				return nil, err
			}
		case "mtrl":
			if err := t.readMaterials(rec, int(offs)); err != nil {
				return nil, err
			}
		case "seq ", "trk ", "musc", "inst":
			// Sequence and instrument payloads belong to the audio
			// collaborator; the engine only indexes streams.
		default:
			return nil, malformed(rec, "chunk %d fourcc %q", ci, fourcc)
		}
	}
	return t, nil
}

func (t *CueTable) readSound(rec *container.AssetRecord, offs int) error {
	r := &reader{data: rec.Data, offset: offs}

	_, err1 := r.u32() // sound id
	_, err2 := r.u8()  // version
	_, err3 := r.u8()  // flags
	_, err4 := r.u16() // header size
	nseqs, err5 := r.u16()
	seqStart, err6 := r.u16()
	nameSize, err7 := r.u8()
	for _, err := range []error{err1, err2, err3, err4, err5, err6, err7} {
		if err != nil {
			return malformedErr(rec, err, "sound header at %#x", offs)
		}
	}
	if _, err := r.bytes(3 + 24); err != nil { // padding + reserved
		return malformedErr(rec, err, "sound header at %#x", offs)
	}
	nameRaw, err := r.bytes(int(nameSize))
	if err != nil {
		return malformedErr(rec, err, "sound name at %#x", offs)
	}

	t.Sounds = append(t.Sounds, Sound{
		Name:     strings.TrimRight(string(nameRaw), "\x00"),
		SeqStart: int(seqStart),
		SeqCount: int(nseqs),
	})
	return nil
}

func (t *CueTable) readMaterials(rec *container.AssetRecord, offs int) error {
	r := &reader{data: rec.Data, offset: offs}

	_, err1 := r.u8() // version
	_, err2 := r.u8()
	_, err3 := r.u16() // header size
	nentries, err4 := r.u16()
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return malformedErr(rec, err, "material header at %#x", offs)
		}
	}
	if _, err := r.bytes(12); err != nil { // alignment
		return malformedErr(rec, err, "material header at %#x", offs)
	}

	for i := 0; i < int(nentries); i++ {
		rel, err := r.u32()
		if err != nil {
			return malformedErr(rec, err, "material offset %d", i)
		}
		if err := t.readStream(rec, offs+int(rel)); err != nil {
			return err
		}
	}
	return nil
}

func (t *CueTable) readStream(rec *container.AssetRecord, offs int) error {
	if offs < 0 || offs+seadStreamSize > len(rec.Data) {
		return malformed(rec, "stream header at %#x outside bank", offs)
	}
	r := &reader{data: rec.Data, offset: offs}

	_, _ = r.u16() // version
	_, _ = r.u16()
	_, _ = r.u16() // header size
	nchannels, _ := r.u16()
	codec, _ := r.u16()
	_, _ = r.u16() // material index
	sampleRate, _ := r.u32()
	loopStart, _ := r.u32()
	loopEnd, _ := r.u32()
	_, _ = r.u32() // total size
	streamSize, _ := r.u32()
	id, _ := r.u16()

	if nchannels == 0 || nchannels > maxSeadChannels {
		return malformed(rec, "stream %d: %d channels", id, nchannels)
	}
	if codec > 0xFF {
		return malformed(rec, "stream %d: codec %#x", id, codec)
	}
	if _, dup := t.byID[id]; dup {
		return malformed(rec, "duplicate cue id %d", id)
	}

	t.byID[id] = len(t.Cues)
	t.Cues = append(t.Cues, Cue{
		ID:         id,
		Channels:   uint8(nchannels),
		Codec:      uint8(codec),
		SampleRate: sampleRate,
		LoopStart:  loopStart,
		LoopEnd:    loopEnd,
		StreamSize: streamSize,
	})
	return nil
}
