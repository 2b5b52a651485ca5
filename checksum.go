package schemaboi

import "github.com/dchest/siphash"

// SipHash keys for document checksums.
const (
	sipKey0 = 0x736368656d61626f // "schemabo"
	sipKey1 = 0x692d636865636b73 // "i-checks"
)

func checksum(b []byte) uint64 {
	return siphash.Hash(sipKey0, sipKey1, b)
}
