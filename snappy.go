package schemaboi

import (
	"math"

	"github.com/golang/snappy"
)

// SnappyCompressor compresses a payload using the Snappy format.
type SnappyCompressor struct{}

func (c SnappyCompressor) Type() CompressionType { return CompressionSnappy }

func (c SnappyCompressor) compress(b []byte) ([]byte, error) {
	if uint64(len(b)) >= math.MaxUint32 {
		return nil, ErrTooLarge
	}

	return appendBlock(nil, snappy.Encode(nil, b)), nil
}

func (c SnappyCompressor) decompress(b []byte, maxSize int) ([]byte, error) {
	blob, err := readBlock(b)
	if err != nil {
		return nil, err
	}

	n, err := snappy.DecodedLen(blob)
	if err != nil {
		return nil, err
	}
	if err := checkSize(uint64(n), maxSize); err != nil {
		return nil, err
	}

	return snappy.Decode(nil, blob)
}
