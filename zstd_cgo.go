//go:build clibs

package schemaboi

import (
	"bytes"
	"io"

	"github.com/DataDog/zstd"
)

func zstdEncode(buf []byte, level int) ([]byte, error) {
	return zstd.CompressLevel(nil, buf, level)
}

func zstdDecode(buf []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		return zstd.Decompress(nil, buf)
	}

	zr := zstd.NewReader(bytes.NewReader(buf))
	defer zr.Close()

	// One byte past the limit is enough to know it is too large.
	var out bytes.Buffer
	if _, err := out.ReadFrom(io.LimitReader(zr, int64(maxSize)+1)); err != nil {
		return nil, err
	}
	if err := checkSize(uint64(out.Len()), maxSize); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
