package schemaboi

import (
	"encoding/binary"
	"math"
	"math/big"
	"math/bits"
)

// Varints use a prefix-length encoding. The number of leading one bits in the
// first byte is the number of bytes that follow it. With k following bytes
// (k < 8) the first byte keeps 7-k payload bits, and the payload continues
// big-endian through the following bytes. A first byte of 0xff is followed by
// a full big-endian word (8 bytes, or 16 for 128-bit integers).
//
// Each length only encodes values the shorter lengths cannot reach, so there
// is exactly one encoding per value: the payload is offset by the size of all
// the shorter ranges.

// varintOffsets[k] is the smallest value that needs k following bytes.
var varintOffsets = func() (o [9]uint64) {
	for k := 1; k < len(o); k++ {
		o[k] = o[k-1] + 1<<(7*k)
	}
	return o
}()

// MaxVarintLen is the longest encoding of a 64 bit varint.
const MaxVarintLen = 9

// VarintSize returns the number of bytes AppendVarint uses to encode n.
func VarintSize(n uint64) int {
	for k := 0; k < 8; k++ {
		if n < varintOffsets[k+1] {
			return k + 1
		}
	}
	return MaxVarintLen
}

// BytesUsed returns the total length of the varint whose first byte is first.
func BytesUsed(first byte) int {
	return bits.LeadingZeros8(^first) + 1
}

// AppendVarint appends the varint encoding of n to b.
func AppendVarint(b []byte, n uint64) []byte {
	k := VarintSize(n) - 1
	if k == 8 {
		b = append(b, 0xff)
		return binary.BigEndian.AppendUint64(b, n-varintOffsets[8])
	}

	v := n - varintOffsets[k]
	b = append(b, ^byte(0xff>>k)|byte(v>>(8*k)))
	for i := k - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// DecodeVarint reads a varint from the start of b. It returns the value and
// the number of bytes consumed.
func DecodeVarint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrUnexpectedEOF
	}

	k := BytesUsed(b[0]) - 1
	if len(b) < k+1 {
		return 0, 0, ErrUnexpectedEOF
	}

	if k == 8 {
		v := binary.BigEndian.Uint64(b[1:9])
		if v > math.MaxUint64-varintOffsets[8] {
			return 0, 0, ErrInvalidVarint
		}
		return v + varintOffsets[8], MaxVarintLen, nil
	}

	v := uint64(b[0] & (0x7f >> k))
	for i := 1; i <= k; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v + varintOffsets[k], k + 1, nil
}

// ZigzagEncode maps signed integers onto unsigned ones so that numbers near
// zero stay small: 0, -1, 1, -2 become 0, 1, 2, 3.
func ZigzagEncode(n int64) uint64 {
	return uint64(n<<1) ^ uint64(n>>63)
}

// ZigzagDecode inverts ZigzagEncode.
func ZigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

var (
	bigOne     = big.NewInt(1)
	bigOffset8 = new(big.Int).SetUint64(varintOffsets[8])
	bigTwo128  = new(big.Int).Lsh(bigOne, 128)
	maxUint128 = new(big.Int).Sub(bigTwo128, bigOne)
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 127), bigOne)
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(bigOne, 127))
)

// AppendVarint128 appends the varint encoding of n, which must be in
// [0, 2^128). Values that fit in 8 bytes share the 64 bit encoding.
func AppendVarint128(b []byte, n *big.Int) []byte {
	if n.IsUint64() && n.Uint64() < varintOffsets[8] {
		return AppendVarint(b, n.Uint64())
	}

	var word [16]byte
	new(big.Int).Sub(n, bigOffset8).FillBytes(word[:])
	b = append(b, 0xff)
	return append(b, word[:]...)
}

// DecodeVarint128 reads a varint written by AppendVarint128.
func DecodeVarint128(b []byte) (*big.Int, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrUnexpectedEOF
	}

	if b[0] != 0xff {
		v, sz, err := DecodeVarint(b)
		if err != nil {
			return nil, 0, err
		}
		return new(big.Int).SetUint64(v), sz, nil
	}

	if len(b) < 17 {
		return nil, 0, ErrUnexpectedEOF
	}

	v := new(big.Int).SetBytes(b[1:17])
	v.Add(v, bigOffset8)
	if v.Cmp(maxUint128) > 0 {
		return nil, 0, ErrInvalidVarint
	}
	return v, 17, nil
}

// ZigzagEncode128 is ZigzagEncode for arbitrary precision integers.
func ZigzagEncode128(n *big.Int) *big.Int {
	z := new(big.Int).Lsh(n, 1)
	if n.Sign() < 0 {
		z.Neg(z)
		z.Sub(z, bigOne)
	}
	return z
}

// ZigzagDecode128 inverts ZigzagEncode128.
func ZigzagDecode128(u *big.Int) *big.Int {
	z := new(big.Int).Rsh(u, 1)
	if u.Bit(0) == 1 {
		z.Add(z, bigOne)
		z.Neg(z)
	}
	return z
}
