// Package hashing provides the content-hash primitives the graph database
// and result cache use to decide whether anything changed: a 64-bit hash
// with a streaming accumulator, a 32-bit variant for smaller stamps, and a
// CRC32 variant kept only for interop with tooling that expects one (it is
// never used for database integrity).
package hashing

import (
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// Hash64 hashes data in one call. Byte-identical inputs produce identical
// hashes across platforms and Go versions; callers may persist this value
// in the graph database and compare it after a process restart.
func Hash64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Hash64String hashes s without a copy to []byte.
func Hash64String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Hash32 is Hash64 truncated to 32 bits, for stamps where 8 bytes is more
// than the caller wants to carry around (e.g. a short diagnostic token).
func Hash32(data []byte) uint32 {
	return uint32(Hash64(data))
}

// CRC32 computes the IEEE CRC32 of data. Present for interop with external
// tools that expect a CRC32 (e.g. comparing against a checksum shipped by a
// build description's upstream fetcher) — it is not used anywhere the
// database or cache checks its own integrity, since xxhash is both faster
// and has a far lower collision rate at the same size.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Accumulator incrementally hashes a sequence of byte slices without
// requiring the caller to concatenate them first, matching the contract
// Hash64(a+b) == NewAccumulator().Add(a).Add(b).Sum64(). Used while
// serializing a node's dependency list or a DB page, where the full byte
// sequence is assembled piece by piece.
type Accumulator struct {
	d xxhash.Digest
}

// NewAccumulator returns a ready-to-use Accumulator.
func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.d.Reset()
	return a
}

// Add feeds p into the accumulator and returns the receiver, so calls can be
// chained: acc.Add(a).Add(b).Add(c).
func (a *Accumulator) Add(p []byte) *Accumulator {
	a.d.Write(p)
	return a
}

// AddString feeds s into the accumulator without a copy to []byte.
func (a *Accumulator) AddString(s string) *Accumulator {
	a.d.WriteString(s)
	return a
}

// AddUint64 feeds the little-endian bytes of v into the accumulator. Used
// for hashing fixed-width fields (node indices, flags, counts) inline with
// variable-length data without the caller needing a scratch buffer.
func (a *Accumulator) AddUint64(v uint64) *Accumulator {
	var buf [8]byte
	putUint64(buf[:], v)
	a.d.Write(buf[:])
	return a
}

// Sum64 finalizes and returns the accumulated hash. The accumulator remains
// usable after Sum64 is called, matching xxhash.Digest's own contract.
func (a *Accumulator) Sum64() uint64 {
	return a.d.Sum64()
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
