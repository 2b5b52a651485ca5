package schemaboi

const magicHeader = "SBOI"

const (
	headerSize      = len(magicHeader) + 2 // magic, version, flags
	documentVersion = 1
	checksumSize    = 8
)

// flags byte
const (
	flagCompressionMask = 0x0f
	flagChecksum        = 0x80
)

// CompressionType is stored in the low nibble of a document's flags byte.
type CompressionType byte

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZlib
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	}
	return "unknown"
}

// Keys with special meaning in decoded values.
const (
	ForeignKey     = "_foreign"
	UnknownVariant = "_unknown"
	TypeKey        = "type"
	DataKey        = "data"
)

// maxBitfieldBits is the number of optional and inline bool fields a single
// struct can hold.
const maxBitfieldBits = 64

// defaultCompressionThreshold is the smallest payload the Encoder will try to
// compress.
const defaultCompressionThreshold = 1024
