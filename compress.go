package schemaboi

import "fmt"

// A Compressor compresses the payload of a document. Decoders only understand
// the compressors in this package, so the interface is sealed.
type Compressor interface {
	Type() CompressionType
	compress(b []byte) ([]byte, error)
	decompress(b []byte, maxSize int) ([]byte, error)
}

var (
	_ Compressor = SnappyCompressor{}
	_ Compressor = ZlibCompressor{}
	_ Compressor = ZstdCompressor{}
	_ Compressor = S2Compressor{}
	_ Compressor = LZ4Compressor{}
)

// decompressorFor returns a Compressor able to read payloads of type t.
func decompressorFor(t CompressionType) (Compressor, error) {
	switch t {
	case CompressionSnappy:
		return SnappyCompressor{}, nil
	case CompressionZlib:
		return ZlibCompressor{}, nil
	case CompressionZstd:
		return ZstdCompressor{}, nil
	case CompressionS2:
		return S2Compressor{}, nil
	case CompressionLZ4:
		return LZ4Compressor{}, nil
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownCompression, t)
}

func checkSize(n uint64, maxSize int) error {
	if maxSize > 0 && n > uint64(maxSize) {
		return fmt.Errorf("%w: payload is %d bytes, limit is %d", ErrTooLarge, n, maxSize)
	}
	return nil
}

// appendBlock writes blob prefixed by its length.
func appendBlock(b, blob []byte) []byte {
	b = AppendVarint(b, uint64(len(blob)))
	return append(b, blob...)
}

// readBlock reads a block written by appendBlock. The block must fill b.
func readBlock(b []byte) ([]byte, error) {
	ln, sz, err := DecodeVarint(b)
	if err != nil {
		return nil, err
	}
	if ln != uint64(len(b)-sz) {
		return nil, ErrCorrupt{errBadOffset}
	}
	return b[sz:], nil
}
