package assets

import (
	"errors"
	"fmt"

	"github.com/epochengine/epoch/container"
)

// ---------------------------------------------------------------------------
// Asset interface and error types
// ---------------------------------------------------------------------------

// Asset is a decoded, immutable asset. Once published through the
// cache an Asset is shared read-only by every consumer; re-decoding
// produces a new value, never mutates one.
type Asset interface {
	AssetKind() container.Kind
	MemSize() int // decoded footprint in bytes, for the cache budget
}

// ErrMalformedAsset is the sentinel all decode failures wrap.
var ErrMalformedAsset = errors.New("malformed asset")

// MalformedAssetError says a specific record cannot be decoded. The
// record stays usable as raw bytes; it just has no valid structure
// under its kind.
type MalformedAssetError struct {
	Kind   container.Kind
	ID     container.RecordID
	Reason string
	Err    error // underlying cause, when one exists
}

func (e *MalformedAssetError) Error() string {
	return fmt.Sprintf("malformed %s asset %08x: %s", e.Kind, uint32(e.ID), e.Reason)
}

func (e *MalformedAssetError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedAsset, e.Err}
	}
	return []error{ErrMalformedAsset}
}

// malformed builds the standard decode failure for a record.
func malformed(rec *container.AssetRecord, format string, args ...any) error {
	return &MalformedAssetError{
		Kind:   rec.Kind,
		ID:     rec.ID,
		Reason: fmt.Sprintf(format, args...),
	}
}

// malformedErr is malformed with an underlying cause attached.
func malformedErr(rec *container.AssetRecord, err error, format string, args ...any) error {
	return &MalformedAssetError{
		Kind:   rec.Kind,
		ID:     rec.ID,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// ---------------------------------------------------------------------------
// Raw passthrough
// ---------------------------------------------------------------------------

// Raw carries a record that has no decoder: unclassified payloads and
// the sub-container kinds, which callers split themselves.
type Raw struct {
	ID   container.RecordID
	Kind container.Kind
	Data []byte
}

func (r *Raw) AssetKind() container.Kind { return r.Kind }
func (r *Raw) MemSize() int              { return len(r.Data) }

// ---------------------------------------------------------------------------
// Bounds-checked cursor over record bytes
// ---------------------------------------------------------------------------

var errTruncated = errors.New("unexpected end of record data")

// reader is a cursor over a record payload. Every read checks bounds;
// decoders turn errTruncated into MalformedAssetError at their layer.
type reader struct {
	data   []byte
	offset int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

func (r *reader) u8() (uint8, error) {
	if r.offset+1 > len(r.data) {
		return 0, errTruncated
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.offset+2 > len(r.data) {
		return 0, errTruncated
	}
	v := uint16(r.data[r.offset]) | uint16(r.data[r.offset+1])<<8
	r.offset += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, errTruncated
	}
	v := uint32(r.data[r.offset]) | uint32(r.data[r.offset+1])<<8 |
		uint32(r.data[r.offset+2])<<16 | uint32(r.data[r.offset+3])<<24
	r.offset += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, errTruncated
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// magic consumes a four-byte signature, failing if it does not match.
func (r *reader) magic(want string) error {
	b, err := r.bytes(4)
	if err != nil {
		return err
	}
	if string(b) != want {
		return fmt.Errorf("signature %q, want %q", b, want)
	}
	return nil
}
