// Package container reads the packaged asset archives the game ships
// with: the PC release's resources.bin archive plus the disc release's
// DRP and CPT sub-containers.
//
// A Package is opened once and then serves lazy record reads by id.
// The archive index is held in memory; record payloads are read,
// unmasked and decompressed on demand, so a Package never pins the
// whole archive. Concurrent reads of distinct records are safe.
//
// resources.bin layout: a 16-byte header, entry payloads and an index
// blob, all masked by a byte keystream seeded from the absolute file
// offset. The index names every entry by path; record ids are stable
// 32-bit hashes of those paths. Each payload carries a 4-byte
// inflated-size prefix followed by a deflate stream (gzip, zlib or raw
// depending on the packing tool revision). A small set of entries adds
// a Blowfish layer on top, keyed from the game executable.
package container
