//go:build !clibs

package schemaboi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoders are pooled per speed setting, decoders per size limit.
var (
	zstdEncoderPools sync.Map // zstd.EncoderLevel -> *sync.Pool
	zstdDecoderPools sync.Map // uint64 -> *sync.Pool
)

func zstdDecoderPool(maxSize int) *sync.Pool {
	limit := uint64(0)
	if maxSize > 0 {
		// Single segment frames always ask for a window this big.
		limit = max(uint64(maxSize), zstd.MinWindowSize)
	}
	if p, ok := zstdDecoderPools.Load(limit); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdDecoderPools.LoadOrStore(limit, &sync.Pool{
		New: func() any {
			opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
			if limit > 0 {
				opts = append(opts, zstd.WithDecoderMaxMemory(limit))
			}
			decoder, err := zstd.NewReader(nil, opts...)
			if err != nil {
				panic(fmt.Sprintf("schemaboi: creating zstd decoder: %v", err))
			}
			return decoder
		},
	})
	return p.(*sync.Pool)
}

func zstdEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncoderPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderCRC(false))
			if err != nil {
				panic(fmt.Sprintf("schemaboi: creating zstd encoder: %v", err))
			}
			return encoder
		},
	})
	return p.(*sync.Pool)
}

func zstdEncode(buf []byte, level int) ([]byte, error) {
	pool := zstdEncoderPool(zstd.EncoderLevelFromZstd(level))
	encoder := pool.Get().(*zstd.Encoder)
	defer pool.Put(encoder)

	return encoder.EncodeAll(buf, nil), nil
}

func zstdDecode(buf []byte, maxSize int) ([]byte, error) {
	pool := zstdDecoderPool(maxSize)
	decoder := pool.Get().(*zstd.Decoder)
	defer pool.Put(decoder)

	out, err := decoder.DecodeAll(buf, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: zstd payload is over the %d byte limit", ErrTooLarge, maxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}
