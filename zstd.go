package schemaboi

import "github.com/klauspost/compress/zstd"

// ZstdCompressor compresses a payload using the zstd format.
type ZstdCompressor struct {
	Level int // compression level, set to ZstdDefaultCompression by default
}

// Zstd constants
const (
	ZstdBestSpeed          = 1
	ZstdBestCompression    = 20
	ZstdDefaultCompression = 3
)

func (c ZstdCompressor) Type() CompressionType { return CompressionZstd }

func (c ZstdCompressor) compress(buf []byte) ([]byte, error) {
	if c.Level == 0 {
		c.Level = ZstdDefaultCompression
	}

	tail, err := zstdEncode(buf, c.Level)
	if err != nil {
		return nil, err
	}

	return appendBlock(nil, tail), nil
}

func (c ZstdCompressor) decompress(buf []byte, maxSize int) ([]byte, error) {
	blob, err := readBlock(buf)
	if err != nil {
		return nil, err
	}

	// Frames written in one shot carry their size up front.
	var h zstd.Header
	if err := h.Decode(blob); err == nil && h.HasFCS {
		if err := checkSize(h.FrameContentSize, maxSize); err != nil {
			return nil, err
		}
	}

	out, err := zstdDecode(blob, maxSize)
	if err != nil {
		return nil, err
	}
	if err := checkSize(uint64(len(out)), maxSize); err != nil {
		return nil, err
	}
	return out, nil
}
