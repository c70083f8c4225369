package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
)

// Archive geometry.
const (
	headerSize      = 16
	indexEntrySize  = 12
	sizePrefixSize  = 4
	maxInflatedSize = 1 << 28 // inflated payloads above this are rejected
)

var archiveMagic = [4]byte{'A', 'R', 'C', '1'}

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

var (
	ErrCorruptContainer   = errors.New("corrupt container")
	ErrRecordNotFound     = errors.New("record not found")
	ErrUnsupportedVersion = errors.New("unsupported container version")
)

// ---------------------------------------------------------------------------
// AssetRecord: one fully extracted entry
// ---------------------------------------------------------------------------

// AssetRecord is a single archive entry with its payload unmasked,
// decompressed and, where applicable, decrypted. Records are immutable
// once returned.
type AssetRecord struct {
	ID   RecordID
	Path string
	Kind Kind
	Data []byte

	// Source location inside the archive file, for diagnostics.
	SrcOffset int64
	SrcLen    int64
}

// ---------------------------------------------------------------------------
// Package: an opened archive
// ---------------------------------------------------------------------------

type entry struct {
	path      string
	kind      Kind
	dataOffs  uint32
	size      uint32
	encrypted bool
}

// Package is an opened resources archive. The index lives in memory;
// payloads are read from disk per request. Record is safe to call
// concurrently.
type Package struct {
	path   string
	byID   map[RecordID]*entry
	byPath map[string]RecordID
	paths  []string // sorted
	cipher *entryCipher
	log    commonlog.Logger
}

// Open opens an archive without an entry decryption key. Records in
// the protected set read back in their enciphered form.
func Open(path string) (*Package, error) {
	return open(path, nil)
}

// OpenWithKey opens an archive with the 16-byte entry key, normally
// obtained via KeyFromExecutable.
func OpenWithKey(path string, key []byte) (*Package, error) {
	cipher, err := newEntryCipher(key)
	if err != nil {
		return nil, err
	}
	return open(path, cipher)
}

func open(path string, cipher *entryCipher) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	fileSize := fi.Size()

	// Header
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptContainer, err)
	}
	unmask(0, hdr)

	if !bytes.Equal(hdr[0:4], archiveMagic[:]) {
		// Later archive generations keep the ARC prefix and bump the
		// digit; anything else is just damage.
		if bytes.Equal(hdr[0:3], archiveMagic[:3]) {
			return nil, fmt.Errorf("%w: signature %q", ErrUnsupportedVersion, hdr[0:4])
		}
		return nil, fmt.Errorf("%w: bad signature %q", ErrCorruptContainer, hdr[0:4])
	}

	indexSize := binary.LittleEndian.Uint32(hdr[4:8])
	indexOffs := binary.LittleEndian.Uint32(hdr[8:12])
	indexCmpSize := binary.LittleEndian.Uint32(hdr[12:16])

	if indexSize > maxInflatedSize {
		return nil, fmt.Errorf("%w: index size %d", ErrCorruptContainer, indexSize)
	}
	if int64(indexOffs)+int64(indexCmpSize) > fileSize || indexCmpSize < sizePrefixSize {
		return nil, fmt.Errorf("%w: index span %#x+%#x outside file", ErrCorruptContainer, indexOffs, indexCmpSize)
	}

	// Index blob: unmask, skip the redundant size prefix, inflate to
	// the size declared in the header.
	cmp := make([]byte, indexCmpSize)
	if _, err := f.ReadAt(cmp, int64(indexOffs)); err != nil {
		return nil, fmt.Errorf("%w: read index: %v", ErrCorruptContainer, err)
	}
	unmask(indexOffs, cmp)

	index, err := inflate(cmp[sizePrefixSize:], int(indexSize))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate index: %v", ErrCorruptContainer, err)
	}

	ents, err := parseIndex(index)
	if err != nil {
		return nil, err
	}

	p := &Package{
		path:   path,
		byID:   make(map[RecordID]*entry, len(ents)),
		byPath: make(map[string]RecordID, len(ents)),
		paths:  make([]string, 0, len(ents)),
		cipher: cipher,
		log:    commonlog.GetLogger("epoch.container"),
	}

	for i := range ents {
		ent := &ents[i]
		if int64(ent.dataOffs)+int64(ent.size) > fileSize {
			return nil, fmt.Errorf("%w: entry %q spans %#x+%#x outside file", ErrCorruptContainer, ent.path, ent.dataOffs, ent.size)
		}
		id := IDForPath(ent.path)
		if prev, ok := p.byID[id]; ok {
			return nil, fmt.Errorf("%w: id collision between %q and %q", ErrCorruptContainer, prev.path, ent.path)
		}
		ent.kind = KindOfPath(ent.path)
		ent.encrypted = cipher != nil && isProtectedPath(ent.path)
		p.byID[id] = ent
		p.byPath[ent.path] = id
		p.paths = append(p.paths, ent.path)
	}
	sort.Strings(p.paths)

	p.log.Infof("opened %s: %d records", path, len(ents))
	return p, nil
}

// parseIndex decodes the inflated index blob: an entry count, the
// entry table and a path string pool addressed by table offsets.
func parseIndex(index []byte) ([]entry, error) {
	if len(index) < 4 {
		return nil, fmt.Errorf("%w: index truncated", ErrCorruptContainer)
	}
	count := binary.LittleEndian.Uint32(index[0:4])
	need := 4 + int64(count)*indexEntrySize
	if need > int64(len(index)) {
		return nil, fmt.Errorf("%w: index declares %d entries in %d bytes", ErrCorruptContainer, count, len(index))
	}

	ents := make([]entry, count)
	for i := uint32(0); i < count; i++ {
		rec := index[4+i*indexEntrySize:]
		pathOffs := binary.LittleEndian.Uint32(rec[0:4])
		dataOffs := binary.LittleEndian.Uint32(rec[4:8])
		size := binary.LittleEndian.Uint32(rec[8:12])

		if int64(pathOffs) >= int64(len(index)) {
			return nil, fmt.Errorf("%w: entry %d path offset %#x outside index", ErrCorruptContainer, i, pathOffs)
		}
		nul := bytes.IndexByte(index[pathOffs:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: entry %d path unterminated", ErrCorruptContainer, i)
		}
		path := string(index[pathOffs : int(pathOffs)+nul])
		if path == "" {
			return nil, fmt.Errorf("%w: entry %d has empty path", ErrCorruptContainer, i)
		}

		ents[i] = entry{path: path, dataOffs: dataOffs, size: size}
	}
	return ents, nil
}

// Protected entries carry the extra cipher layer. As shipped these are
// the string banks.
func isProtectedPath(p string) bool {
	base := strings.ToLower(p)
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.HasPrefix(base, "string_") && strings.HasSuffix(base, ".bin")
}

// ---------------------------------------------------------------------------
// Record access
// ---------------------------------------------------------------------------

// Len returns the number of records in the package.
func (p *Package) Len() int {
	return len(p.byID)
}

// Paths returns all record paths in sorted order. The returned slice
// is shared; callers must not modify it.
func (p *Package) Paths() []string {
	return p.paths
}

// Lookup resolves a path to its record id.
func (p *Package) Lookup(path string) (RecordID, bool) {
	id, ok := p.byPath[path]
	return id, ok
}

// Record reads, unmasks and decompresses a single entry. Distinct ids
// may be read concurrently; each call opens its own file handle.
func (p *Package) Record(id RecordID) (*AssetRecord, error) {
	ent, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %08x", ErrRecordNotFound, uint32(id))
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	masked := make([]byte, ent.size)
	if _, err := f.ReadAt(masked, int64(ent.dataOffs)); err != nil {
		return nil, fmt.Errorf("%w: read %q at %#x: %v", ErrCorruptContainer, ent.path, ent.dataOffs, err)
	}
	unmask(ent.dataOffs, masked)

	if len(masked) < sizePrefixSize {
		return nil, fmt.Errorf("%w: %q shorter than size prefix", ErrCorruptContainer, ent.path)
	}
	want := binary.BigEndian.Uint32(masked[0:sizePrefixSize])
	if want > maxInflatedSize {
		return nil, fmt.Errorf("%w: %q declares %d inflated bytes", ErrCorruptContainer, ent.path, want)
	}

	data, err := inflate(masked[sizePrefixSize:], int(want))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate %q: %v", ErrCorruptContainer, ent.path, err)
	}

	if ent.encrypted {
		if err := p.cipher.decrypt(data); err != nil {
			return nil, fmt.Errorf("decrypt %q: %w", ent.path, err)
		}
	}

	return &AssetRecord{
		ID:        id,
		Path:      ent.path,
		Kind:      ent.kind,
		Data:      data,
		SrcOffset: int64(ent.dataOffs),
		SrcLen:    int64(ent.size),
	}, nil
}

// RecordByPath is Record keyed by archive path.
func (p *Package) RecordByPath(path string) (*AssetRecord, error) {
	id, ok := p.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, path)
	}
	return p.Record(id)
}

// KindOf reports the kind of a record without reading its payload.
func (p *Package) KindOf(id RecordID) (Kind, bool) {
	ent, ok := p.byID[id]
	if !ok {
		return KindRaw, false
	}
	return ent.kind, true
}
