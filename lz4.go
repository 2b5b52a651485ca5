package schemaboi

import (
	"sync"

	"github.com/pierrec/lz4/v4"
)

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Compressor compresses a payload using LZ4 blocks.
type LZ4Compressor struct{}

func (c LZ4Compressor) Type() CompressionType { return CompressionLZ4 }

// Payloads are stored as <uncompressed length><compressed length><block>. A
// compressed length of zero means lz4 could not shrink the payload and it is
// stored as is.
func (c LZ4Compressor) compress(b []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(b)))

	lc := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(b, dst)
	if err != nil {
		return nil, err
	}

	head := AppendVarint(nil, uint64(len(b)))
	if n == 0 || n >= len(b) {
		head = AppendVarint(head, 0)
		return append(head, b...), nil
	}
	return appendBlock(head, dst[:n]), nil
}

func (c LZ4Compressor) decompress(b []byte, maxSize int) ([]byte, error) {
	uln, usz, err := DecodeVarint(b)
	if err != nil {
		return nil, err
	}
	if err := checkSize(uln, maxSize); err != nil {
		return nil, err
	}

	cln, csz, err := DecodeVarint(b[usz:])
	if err != nil {
		return nil, err
	}
	rest := b[usz+csz:]

	if cln == 0 {
		if uint64(len(rest)) != uln {
			return nil, ErrCorrupt{errBadLength}
		}
		return append([]byte(nil), rest...), nil
	}
	if cln != uint64(len(rest)) {
		return nil, ErrCorrupt{errBadOffset}
	}
	// lz4 expands by at most 255x
	if uln > cln*255 {
		return nil, ErrCorrupt{errBadLength}
	}

	out := make([]byte, uln)
	n, err := lz4.UncompressBlock(rest, out)
	if err != nil {
		return nil, err
	}
	if uint64(n) != uln {
		return nil, ErrCorrupt{errBadLength}
	}
	return out, nil
}
