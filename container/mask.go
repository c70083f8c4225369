package container

// Keystream parameters for the archive obfuscation layer. The stream
// is a linear congruential generator seeded from the absolute file
// offset; each output byte is the top byte of the next generator
// state.
const (
	maskSeedBase = 0x19000000
	maskMul      = 0x41C64E6D
	maskAdd      = 12345
)

// unmask XORs data with the keystream for a block starting at the
// given absolute file offset. The transform is its own inverse.
func unmask(offs uint32, data []byte) {
	seed := maskSeedBase + offs
	for i := range data {
		seed = seed*maskMul + maskAdd
		data[i] ^= byte(seed >> 24)
	}
}
