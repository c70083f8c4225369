package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// The engine only reads shipped archives; the writer exists for
// repacking tools and fixtures. It emits the gzip wrapper, the one
// current packing tools produce.

// WriteEntry is one record to pack.
type WriteEntry struct {
	Path    string
	Data    []byte
	Encrypt bool // requires a key; payload must be 8-byte aligned
}

// WriteArchive builds a complete archive image from entries. Entries
// are laid out in order after the header, with the index at the end.
func WriteArchive(entries []WriteEntry, key []byte) ([]byte, error) {
	var cipher *entryCipher
	if key != nil {
		c, err := newEntryCipher(key)
		if err != nil {
			return nil, err
		}
		cipher = c
	}

	seen := make(map[string]bool, len(entries))
	var out bytes.Buffer
	out.Write(make([]byte, headerSize)) // patched last

	type placed struct {
		path     string
		dataOffs uint32
		size     uint32
	}
	placedEntries := make([]placed, 0, len(entries))

	for _, ent := range entries {
		if ent.Path == "" {
			return nil, fmt.Errorf("entry with empty path")
		}
		if seen[ent.Path] {
			return nil, fmt.Errorf("duplicate entry path %q", ent.Path)
		}
		seen[ent.Path] = true

		payload := append([]byte(nil), ent.Data...)
		if ent.Encrypt {
			if cipher == nil {
				return nil, fmt.Errorf("entry %q wants encryption but no key given", ent.Path)
			}
			if err := cipher.encrypt(payload); err != nil {
				return nil, fmt.Errorf("encrypt %q: %w", ent.Path, err)
			}
		}

		blob, err := packPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("pack %q: %w", ent.Path, err)
		}

		dataOffs := uint32(out.Len())
		unmask(dataOffs, blob)
		out.Write(blob)
		placedEntries = append(placedEntries, placed{ent.Path, dataOffs, uint32(len(blob))})
	}

	// Index: count, entry table, then the path pool.
	var index bytes.Buffer
	binary.Write(&index, binary.LittleEndian, uint32(len(placedEntries)))
	pathOffs := 4 + indexEntrySize*len(placedEntries)
	for _, pe := range placedEntries {
		binary.Write(&index, binary.LittleEndian, uint32(pathOffs))
		binary.Write(&index, binary.LittleEndian, pe.dataOffs)
		binary.Write(&index, binary.LittleEndian, pe.size)
		pathOffs += len(pe.path) + 1
	}
	for _, pe := range placedEntries {
		index.WriteString(pe.path)
		index.WriteByte(0)
	}

	indexRaw := index.Bytes()
	indexBlob, err := packPayload(indexRaw)
	if err != nil {
		return nil, fmt.Errorf("pack index: %w", err)
	}
	indexOffs := uint32(out.Len())
	unmask(indexOffs, indexBlob)
	out.Write(indexBlob)

	img := out.Bytes()
	copy(img[0:4], archiveMagic[:])
	binary.LittleEndian.PutUint32(img[4:8], uint32(len(indexRaw)))
	binary.LittleEndian.PutUint32(img[8:12], indexOffs)
	binary.LittleEndian.PutUint32(img[12:16], uint32(len(indexBlob)))
	unmask(0, img[0:headerSize])

	return img, nil
}

// packPayload prefixes the inflated size and appends the gzip stream.
func packPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
