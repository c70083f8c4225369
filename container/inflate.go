package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// inflate decompresses a payload, sniffing the stream wrapper. Packing
// tool revisions differ: some wrap payloads in gzip, some in zlib, the
// oldest emit raw deflate. The wrapper's own integrity checksum is
// verified by reading through end of stream, and the output must match
// the declared size exactly.
func inflate(cmp []byte, want int) ([]byte, error) {
	if want < 0 {
		return nil, fmt.Errorf("negative inflated size %d", want)
	}

	var (
		r   io.Reader
		err error
	)
	switch {
	case len(cmp) >= 2 && cmp[0] == 0x1f && cmp[1] == 0x8b:
		var gr *gzip.Reader
		gr, err = gzip.NewReader(bytes.NewReader(cmp))
		if gr != nil {
			gr.Multistream(false)
		}
		r = gr
	case len(cmp) >= 1 && cmp[0] == 0x78:
		r, err = zlib.NewReader(bytes.NewReader(cmp))
	default:
		r = flate.NewReader(bytes.NewReader(cmp))
	}
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	out := make([]byte, want)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("short stream: %w", err)
	}

	// Reading past the declared size both runs the wrapper's checksum
	// check and catches declared-size mismatches.
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, fmt.Errorf("verify stream: %w", err)
	}
	if n != 0 {
		return nil, fmt.Errorf("stream exceeds declared size by %d bytes", n)
	}
	return out, nil
}
