package schemaboi

import "github.com/klauspost/compress/s2"

// S2Compressor compresses a payload using S2, a faster extension of Snappy.
type S2Compressor struct {
	// Better trades speed for a smaller payload.
	Better bool
}

func (c S2Compressor) Type() CompressionType { return CompressionS2 }

func (c S2Compressor) compress(b []byte) ([]byte, error) {
	if c.Better {
		return appendBlock(nil, s2.EncodeBetter(nil, b)), nil
	}
	return appendBlock(nil, s2.Encode(nil, b)), nil
}

func (c S2Compressor) decompress(b []byte, maxSize int) ([]byte, error) {
	blob, err := readBlock(b)
	if err != nil {
		return nil, err
	}

	n, err := s2.DecodedLen(blob)
	if err != nil {
		return nil, err
	}
	if err := checkSize(uint64(n), maxSize); err != nil {
		return nil, err
	}

	return s2.Decode(nil, blob)
}
