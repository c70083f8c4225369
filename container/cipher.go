package container

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/crypto/blowfish"
)

// Offset of the 16-byte entry key inside the game executable.
const keyOffset = 0x398EE8

// Protected entries XOR these bytes over the first block before the
// block cipher runs.
var cipherPreamble = [8]byte{0x75, 0xFA, 0x29, 0x95, 0x05, 0x4D, 0x41, 0x5F}

// KeyFromExecutable reads the entry decryption key from the game
// executable.
func KeyFromExecutable(exePath string) ([]byte, error) {
	f, err := os.Open(exePath)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	defer f.Close()

	key := make([]byte, 16)
	if _, err := f.ReadAt(key, keyOffset); err != nil {
		return nil, fmt.Errorf("read key at %#x: %w", int64(keyOffset), err)
	}
	return key, nil
}

// entryCipher handles the protected-entry layer. The archive uses
// Blowfish with little-endian word order, so each 8-byte block has its
// 32-bit halves byte-swapped around the standard cipher.
type entryCipher struct {
	block *blowfish.Cipher
}

func newEntryCipher(key []byte) (*entryCipher, error) {
	c, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &entryCipher{block: c}, nil
}

// decrypt reverses the entry cipher in place. The payload must be a
// whole number of 8-byte blocks.
func (c *entryCipher) decrypt(data []byte) error {
	if len(data)%blowfish.BlockSize != 0 {
		return fmt.Errorf("%w: cipher payload length %d not block aligned", ErrCorruptContainer, len(data))
	}
	if len(data) == 0 {
		return nil
	}
	for i := range cipherPreamble {
		data[i] ^= cipherPreamble[i]
	}
	var buf [blowfish.BlockSize]byte
	for off := 0; off < len(data); off += blowfish.BlockSize {
		blk := data[off : off+blowfish.BlockSize]
		swapWords(buf[:], blk)
		c.block.Decrypt(buf[:], buf[:])
		swapWords(blk, buf[:])
	}
	return nil
}

// encrypt applies the entry cipher in place, for repacking.
func (c *entryCipher) encrypt(data []byte) error {
	if len(data)%blowfish.BlockSize != 0 {
		return fmt.Errorf("cipher payload length %d not block aligned", len(data))
	}
	if len(data) == 0 {
		return nil
	}
	var buf [blowfish.BlockSize]byte
	for off := 0; off < len(data); off += blowfish.BlockSize {
		blk := data[off : off+blowfish.BlockSize]
		swapWords(buf[:], blk)
		c.block.Encrypt(buf[:], buf[:])
		swapWords(blk, buf[:])
	}
	for i := range cipherPreamble {
		data[i] ^= cipherPreamble[i]
	}
	return nil
}

// swapWords copies one 8-byte block between the archive's little-endian
// word order and the cipher's big-endian one.
func swapWords(dst, src []byte) {
	binary.BigEndian.PutUint32(dst[0:4], binary.LittleEndian.Uint32(src[0:4]))
	binary.BigEndian.PutUint32(dst[4:8], binary.LittleEndian.Uint32(src[4:8]))
}
