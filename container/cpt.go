package container

import (
	"encoding/binary"
	"fmt"
)

// ParseCPT splits a CPT pointer archive into its subfiles. The layout
// is a count-prefixed table of absolute offsets; subfiles are the
// spans between consecutive pointers. A final pointer equal to the
// archive length is an end marker, not a member.
func ParseCPT(data []byte) ([][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: pointer archive truncated", ErrCorruptContainer)
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	tableEnd := 4 + 4*n
	if n < 0 || tableEnd > len(data) {
		return nil, fmt.Errorf("%w: pointer archive declares %d members in %d bytes", ErrCorruptContainer, n, len(data))
	}

	ptrs := make([]int, n)
	for i := 0; i < n; i++ {
		ptrs[i] = int(binary.LittleEndian.Uint32(data[4+4*i:]))
	}

	prev := tableEnd
	for i, p := range ptrs {
		if p < prev || p > len(data) {
			return nil, fmt.Errorf("%w: pointer %d (%#x) out of order", ErrCorruptContainer, i, p)
		}
		prev = p
	}

	// Trailing end marker.
	if n > 0 && ptrs[n-1] == len(data) {
		ptrs = ptrs[:n-1]
		n--
	}

	subs := make([][]byte, n)
	for i := 0; i < n; i++ {
		end := len(data)
		if i+1 < n {
			end = ptrs[i+1]
		}
		subs[i] = data[ptrs[i]:end]
	}
	return subs, nil
}
