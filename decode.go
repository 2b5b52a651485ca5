package schemaboi

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"slices"
	"strconv"
)

// A Decoder reads values using a schema.
type Decoder struct {
	// MaxSize bounds the decompressed size of a document payload. Zero
	// means no limit.
	MaxSize int

	// Logger receives warnings from merging schemas in UnmarshalAs. Nil
	// discards them.
	Logger *slog.Logger

	// Cache, when set, is used by UnmarshalAs to merge each distinct
	// document schema only once.
	Cache *MergeCache
}

// Decode reads bytes written by Encode with the same schema and type.
func Decode(s *Schema, t SType, b []byte) (any, error) {
	var d Decoder
	return d.Decode(s, t, b)
}

// ReadRaw decodes b as the root type of s.
func ReadRaw(s *Schema, b []byte) (any, error) {
	var d Decoder
	return d.UnmarshalRaw(s, b)
}

// Decode reads bytes written by Encode with the same schema and type. All of
// b must be used.
func (d *Decoder) Decode(s *Schema, t SType, b []byte) (any, error) {
	var ds decodeState
	ds.schema = s
	v, idx, err := ds.decode(b, 0, t, nil)
	if err != nil {
		return nil, err
	}
	if idx != len(b) {
		return nil, ErrCorrupt{errTrailingBytes}
	}
	return v, nil
}

// UnmarshalRaw decodes b as the root type of s.
func (d *Decoder) UnmarshalRaw(s *Schema, b []byte) (any, error) {
	return d.Decode(s, s.Root, b)
}

type decodeState struct {
	schema *Schema
	ids    []string
	depth  int
}

// maxDepth bounds how deeply lists, maps and named types may nest.
const maxDepth = 10000

func eof(what string) error {
	return newError(ErrUnexpectedEOF, "reading "+what)
}

func (ds *decodeState) readVarint(b []byte, idx int) (uint64, int, error) {
	v, sz, err := DecodeVarint(b[idx:])
	if err != nil {
		return 0, 0, newError(err, "")
	}
	return v, idx + sz, nil
}

// readLength reads a byte count and checks it against what is left of b.
func (ds *decodeState) readLength(b []byte, idx int, what string) (int, int, error) {
	n, idx, err := ds.readVarint(b, idx)
	if err != nil {
		return 0, 0, err
	}
	if n > uint64(len(b)-idx) {
		return 0, 0, eof(what)
	}
	return int(n), idx, nil
}

// readCount reads the number of elements of a collection whose elements take
// at least elemSize bytes each.
func (ds *decodeState) readCount(b []byte, idx int, elemSize int, corrupt string) (int, int, error) {
	n, idx, err := ds.readVarint(b, idx)
	if err != nil {
		return 0, 0, err
	}
	limit := uint64(len(b) - idx)
	if elemSize > 0 {
		limit /= uint64(elemSize)
	} else {
		limit += maxEmptyElements
	}
	if n > limit {
		return 0, 0, ErrCorrupt{corrupt}
	}
	return int(n), idx, nil
}

// maxEmptyElements bounds collections whose elements can take no bytes at all.
const maxEmptyElements = 1 << 16

func (ds *decodeState) decode(b []byte, idx int, t SType, parent map[string]any) (any, int, error) {
	switch t.Kind {
	case KindList, KindMap, KindRef:
		if ds.depth >= maxDepth {
			return nil, 0, ErrCorrupt{errTooDeep}
		}
		ds.depth++
		defer func() { ds.depth-- }()
	}

	switch t.Kind {
	case KindBool:
		if idx >= len(b) {
			return nil, 0, eof("bool")
		}
		switch b[idx] {
		case 0:
			return false, idx + 1, nil
		case 1:
			return true, idx + 1, nil
		}
		return nil, 0, ErrCorrupt{errBadBool}

	case KindString:
		n, idx, err := ds.readLength(b, idx, "string")
		if err != nil {
			return nil, 0, err
		}
		return string(b[idx : idx+n]), idx + n, nil

	case KindBinary:
		n, idx, err := ds.readLength(b, idx, "binary")
		if err != nil {
			return nil, 0, err
		}
		return slices.Clone(b[idx : idx+n : idx+n]), idx + n, nil

	case KindID:
		return ds.decodeID(b, idx)

	case KindF32:
		if len(b)-idx < 4 {
			return nil, 0, eof("f32")
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b[idx:])), idx + 4, nil

	case KindF64:
		if len(b)-idx < 8 {
			return nil, 0, eof("f64")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b[idx:])), idx + 8, nil

	case KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64:
		return ds.decodeInt(b, idx, t)

	case KindU128, KindS128:
		return ds.decodeInt128(b, idx, t)

	case KindList:
		return ds.decodeList(b, idx, t)

	case KindMap:
		return ds.decodeMap(b, idx, t)

	case KindRef:
		td, err := ds.schema.resolve(t.Ref)
		if err != nil {
			return nil, 0, err
		}
		if td.Kind == TypeEnum {
			return ds.decodeEnum(b, idx, td.Enum, parent)
		}
		return ds.decodeStruct(b, idx, td.Struct)
	}

	return nil, 0, newError(ErrInvalidSchema, "unknown kind "+t.Kind.String())
}

func (ds *decodeState) decodeID(b []byte, idx int) (any, int, error) {
	v, idx, err := ds.readVarint(b, idx)
	if err != nil {
		return nil, 0, err
	}

	if v&1 == 1 {
		i := v >> 1
		if i >= uint64(len(ds.ids)) {
			return nil, 0, ErrCorrupt{errBadIDRef}
		}
		return ds.ids[i], idx, nil
	}

	n := v >> 1
	if n > uint64(len(b)-idx) {
		return nil, 0, eof("id")
	}
	s := string(b[idx : idx+int(n)])
	ds.ids = append(ds.ids, s)
	return s, idx + int(n), nil
}

func (ds *decodeState) decodeInt(b []byte, idx int, t SType) (any, int, error) {
	bits := t.Kind.IntBits()
	signed := t.Kind.IsSigned()

	var u uint64
	if t.intEncoding() == EncodingLE {
		size := bits / 8
		if len(b)-idx < size {
			return nil, 0, eof(t.Kind.String())
		}
		for i := size - 1; i >= 0; i-- {
			u = u<<8 | uint64(b[idx+i])
		}
		idx += size

		if signed {
			shift := 64 - bits
			return intResult(t, int64(u<<shift)>>shift), idx, nil
		}
		return uintResult(t, u), idx, nil
	}

	u, idx, err := ds.readVarint(b, idx)
	if err != nil {
		return nil, 0, err
	}

	if signed {
		i := ZigzagDecode(u)
		if bits < 64 && (i < -1<<(bits-1) || i >= 1<<(bits-1)) {
			return nil, 0, newError(ErrInvalidVarint, t.Kind.String()+" out of range")
		}
		return intResult(t, i), idx, nil
	}
	if bits < 64 && u >= 1<<bits {
		return nil, 0, newError(ErrInvalidVarint, t.Kind.String()+" out of range")
	}
	return uintResult(t, u), idx, nil
}

func intResult(t SType, i int64) any {
	if t.DecodeAsBigInt {
		return big.NewInt(i)
	}
	return i
}

func uintResult(t SType, u uint64) any {
	if t.DecodeAsBigInt {
		return new(big.Int).SetUint64(u)
	}
	return u
}

func (ds *decodeState) decodeInt128(b []byte, idx int, t SType) (any, int, error) {
	if t.intEncoding() == EncodingLE {
		if len(b)-idx < 16 {
			return nil, 0, eof(t.Kind.String())
		}
		word := slices.Clone(b[idx : idx+16])
		slices.Reverse(word)
		n := new(big.Int).SetBytes(word)
		if t.Kind.IsSigned() && n.Cmp(maxInt128) > 0 {
			n.Sub(n, bigTwo128)
		}
		return n, idx + 16, nil
	}

	n, sz, err := DecodeVarint128(b[idx:])
	if err != nil {
		return nil, 0, newError(err, "")
	}
	if t.Kind.IsSigned() {
		n = ZigzagDecode128(n)
	}
	return n, idx + sz, nil
}

// minSize is the fewest bytes a value of type t can take. It stops looking
// after a few levels of nesting, so recursive types report a lower bound.
func (ds *decodeState) minSize(t SType, depth int) int {
	switch t.Kind {
	case KindF32:
		return 4
	case KindF64:
		return 8
	case KindRef:
		td, ok := ds.schema.Types.Get(t.Ref)
		if !ok || depth > 4 {
			return 0
		}
		if td.Kind == TypeEnum {
			return 1
		}
		n := 0
		if td.Struct.hasBitfield() {
			n++
		}
		for _, f := range td.Struct.Fields.All() {
			if !f.Skip && !f.Optional && !f.Inline {
				n += ds.minSize(f.Type, depth+1)
			}
		}
		return n
	}
	if t.Kind.IsInt() && t.intEncoding() == EncodingLE {
		return t.Kind.IntBits() / 8
	}
	return 1
}

func (ds *decodeState) decodeList(b []byte, idx int, t SType) (any, int, error) {
	n, idx, err := ds.readCount(b, idx, ds.minSize(*t.Elem, 0), errBadSliceSize)
	if err != nil {
		return nil, 0, err
	}

	l := make([]any, n)
	for i := range l {
		if l[i], idx, err = ds.decode(b, idx, *t.Elem, nil); err != nil {
			return nil, 0, withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return l, idx, nil
}

func (ds *decodeState) decodeMap(b []byte, idx int, t SType) (any, int, error) {
	elemSize := ds.minSize(*t.Key, 0) + ds.minSize(*t.Elem, 0)
	n, idx, err := ds.readCount(b, idx, elemSize, errBadMapSize)
	if err != nil {
		return nil, 0, err
	}

	var obj map[string]any
	var entries []MapEntry
	var pairs [][2]any
	switch t.MapForm {
	case MapEntries:
		entries = make([]MapEntry, 0, n)
	case MapPairs:
		pairs = make([][2]any, 0, n)
	default:
		obj = make(map[string]any, n)
	}

	for range n {
		var k, v any
		if k, idx, err = ds.decode(b, idx, *t.Key, nil); err != nil {
			return nil, 0, err
		}
		if v, idx, err = ds.decode(b, idx, *t.Elem, nil); err != nil {
			return nil, 0, withPath(err, fmt.Sprintf("[%v]", k))
		}

		switch t.MapForm {
		case MapEntries:
			entries = append(entries, MapEntry{Key: k, Value: v})
		case MapPairs:
			pairs = append(pairs, [2]any{k, v})
		default:
			ks, ok := k.(string)
			if !ok {
				return nil, 0, newError(ErrTypeMismatch, fmt.Sprintf("object keys must be strings, got %T", k))
			}
			obj[ks] = v
		}
	}

	switch t.MapForm {
	case MapEntries:
		return entries, idx, nil
	case MapPairs:
		return pairs, idx, nil
	}
	return obj, idx, nil
}

func (ds *decodeState) decodeStruct(b []byte, idx int, st *StructSchema) (map[string]any, int, error) {
	var bits uint64
	var err error
	if st.hasBitfield() {
		if bits, idx, err = ds.readVarint(b, idx); err != nil {
			return nil, 0, err
		}
	}

	obj := make(map[string]any, st.Fields.Len())
	n := 0
	for i := range st.Fields.Len() {
		name, f := st.Fields.At(i)

		present := !f.Skip
		if !f.Skip && f.Optional {
			present = bits&(1<<n) != 0
			n++
		}

		var v any
		switch {
		case !present:
			v = cloneValue(f.Default)
			if v == nil && !f.Foreign {
				// Missing without a default reads as null.
				obj[f.appName(name)] = nil
				continue
			}
		case f.Inline:
			v = bits&(1<<n) != 0
			n++
		default:
			parent := obj
			if f.Foreign {
				parent = foreignBag(obj, true)
			}
			if v, idx, err = ds.decode(b, idx, f.Type, parent); err != nil {
				return nil, 0, withPath(err, name)
			}
		}

		if v == nil {
			continue
		}
		if f.Foreign {
			foreignBag(obj, true)[name] = v
		} else {
			obj[f.appName(name)] = v
		}
	}

	if n < 64 && bits>>n != 0 {
		return nil, 0, ErrCorrupt{errBadBitfieldLen}
	}
	return obj, idx, nil
}

func (ds *decodeState) decodeEnum(b []byte, idx int, en *EnumSchema, parent map[string]any) (any, int, error) {
	tag, idx, err := ds.readVarint(b, idx)
	if err != nil {
		return nil, 0, err
	}
	name, vr, ok := en.variantAt(tag)
	if !ok {
		return nil, 0, ErrCorrupt{errBadVariant}
	}

	var data map[string]any
	if vr.Data != nil {
		if data, idx, err = ds.decodeStruct(b, idx, vr.Data); err != nil {
			return nil, 0, withPath(err, name)
		}
	}

	onParent := en.TypeFieldOnParent != "" && parent != nil

	if vr.Foreign {
		if data == nil {
			data = make(map[string]any, 1)
		}
		data[TypeKey] = name
		if onParent {
			parent[en.TypeFieldOnParent] = UnknownVariant
		}
		return map[string]any{TypeKey: UnknownVariant, DataKey: data}, idx, nil
	}

	name = vr.appName(name)
	if onParent {
		parent[en.TypeFieldOnParent] = name
		if data == nil {
			return nil, idx, nil
		}
		return data, idx, nil
	}
	if data == nil {
		return name, idx, nil
	}
	data[TypeKey] = name
	return data, idx, nil
}
