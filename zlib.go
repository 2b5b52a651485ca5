package schemaboi

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// ZlibCompressor compresses a payload using the zlib format.
type ZlibCompressor struct {
	Level int // compression level, zero selects ZlibDefaultCompression
}

const (
	ZlibBestSpeed          = zlib.BestSpeed
	ZlibBestCompression    = zlib.BestCompression
	ZlibDefaultCompression = zlib.DefaultCompression
)

var zlibWriterPools = make(map[int]*sync.Pool)

func init() {
	// -1 => 9
	for i := zlib.DefaultCompression; i <= zlib.BestCompression; i++ {
		level := i
		zlibWriterPools[i] = &sync.Pool{
			New: func() any {
				zw, _ := zlib.NewWriterLevel(nil, level)
				return zw
			},
		}
	}
}

func (c ZlibCompressor) Type() CompressionType { return CompressionZlib }

func (c ZlibCompressor) compress(buf []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = ZlibDefaultCompression
	}
	pool := zlibWriterPools[level]
	if pool == nil {
		return nil, fmt.Errorf("unknown zlib level %d", level)
	}

	var comp bytes.Buffer
	zw := pool.Get().(*zlib.Writer)
	defer pool.Put(zw)
	zw.Reset(&comp)

	if _, err := zw.Write(buf); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	// <uncompressed length><compressed length><zlib blob>
	head := AppendVarint(nil, uint64(len(buf)))
	return appendBlock(head, comp.Bytes()), nil
}

func (c ZlibCompressor) decompress(buf []byte, maxSize int) ([]byte, error) {
	uln, usz, err := DecodeVarint(buf)
	if err != nil {
		return nil, err
	}
	if err := checkSize(uln, maxSize); err != nil {
		return nil, err
	}
	blob, err := readBlock(buf[usz:])
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	// Read one byte past the claimed length to catch liars.
	dec := bytes.NewBuffer(make([]byte, 0, min(uln, uint64(len(blob))*8)))
	if _, err := dec.ReadFrom(io.LimitReader(zr, int64(uln)+1)); err != nil {
		return nil, err
	}
	if uint64(dec.Len()) != uln {
		return nil, ErrCorrupt{errBadLength}
	}
	return dec.Bytes(), nil
}
