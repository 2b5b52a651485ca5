package schemaboi

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/big"
	"slices"
	"strconv"
)

// An Encoder writes values using a schema.
//
// The zero value is ready to use and writes uncompressed documents without a
// checksum.
type Encoder struct {
	// Compression is applied to the payload of documents written by Marshal.
	// Nil leaves payloads uncompressed.
	Compression Compressor

	// CompressionThreshold is the smallest payload worth compressing.
	CompressionThreshold int

	// Checksum appends a SipHash of the document to the end of it.
	Checksum bool

	// Logger receives warnings about data the schema does not describe. Nil
	// discards them.
	Logger *slog.Logger
}

// NewEncoder returns an encoder with the default compression threshold.
func NewEncoder() *Encoder {
	return &Encoder{CompressionThreshold: defaultCompressionThreshold}
}

// Encode returns the bytes of v, read as type t of schema s.
func Encode(s *Schema, t SType, v any) ([]byte, error) {
	var e Encoder
	return e.Encode(s, t, v)
}

// WriteRaw encodes v as the root type of s, without a document header.
func WriteRaw(s *Schema, v any) ([]byte, error) {
	var e Encoder
	return e.MarshalRaw(s, v)
}

// Encode returns the bytes of v, read as type t of schema s.
func (e *Encoder) Encode(s *Schema, t SType, v any) ([]byte, error) {
	return e.AppendEncode(nil, s, t, v)
}

// AppendEncode is like Encode but appends to b.
func (e *Encoder) AppendEncode(b []byte, s *Schema, t SType, v any) ([]byte, error) {
	es := encodeState{schema: s, logger: e.Logger}
	out, err := es.encode(b, t, v, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalRaw encodes v as the root type of s, without a document header.
func (e *Encoder) MarshalRaw(s *Schema, v any) ([]byte, error) {
	return e.Encode(s, s.Root, v)
}

// encodeState lives for one call. The id dictionary is shared by every id
// written during the call.
type encodeState struct {
	schema *Schema
	ids    map[string]uint64
	logger *slog.Logger
}

func typeMismatch(t SType, v any) error {
	return newError(ErrTypeMismatch, fmt.Sprintf("expected %s, got %T", t, v))
}

// encode appends v as type t. parent is the object holding v, if v is a
// struct field.
func (es *encodeState) encode(b []byte, t SType, v any, parent map[string]any) ([]byte, error) {
	switch t.Kind {
	case KindBool:
		x, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		if x {
			return append(b, 1), nil
		}
		return append(b, 0), nil

	case KindString:
		x, ok := v.(string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		b = AppendVarint(b, uint64(len(x)))
		return append(b, x...), nil

	case KindBinary:
		x, ok := v.([]byte)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		b = AppendVarint(b, uint64(len(x)))
		return append(b, x...), nil

	case KindID:
		x, ok := v.(string)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return es.encodeID(b, x), nil

	case KindF32:
		f, ok := asFloat(v)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(f))), nil

	case KindF64:
		f, ok := asFloat(v)
		if !ok {
			return nil, typeMismatch(t, v)
		}
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(f)), nil

	case KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64:
		return encodeInt(b, t, v)

	case KindU128, KindS128:
		return encodeInt128(b, t, v)

	case KindList:
		return es.encodeList(b, t, v)

	case KindMap:
		return es.encodeMap(b, t, v)

	case KindRef:
		td, err := es.schema.resolve(t.Ref)
		if err != nil {
			return nil, err
		}
		if td.Kind == TypeEnum {
			return es.encodeEnum(b, td.Enum, v, parent)
		}
		return es.encodeStruct(b, td.Struct, v, false)
	}

	return nil, newError(ErrInvalidSchema, "unknown kind "+t.Kind.String())
}

func (es *encodeState) encodeID(b []byte, s string) []byte {
	if i, ok := es.ids[s]; ok {
		return AppendVarint(b, i<<1|1)
	}
	if es.ids == nil {
		es.ids = make(map[string]uint64)
	}
	es.ids[s] = uint64(len(es.ids))
	b = AppendVarint(b, uint64(len(s))<<1)
	return append(b, s...)
}

func encodeInt(b []byte, t SType, v any) ([]byte, error) {
	bits := t.Kind.IntBits()
	le := t.intEncoding() == EncodingLE

	if t.Kind.IsSigned() {
		i, ok := asInt64(v)
		if !ok || (bits < 64 && (i < -1<<(bits-1) || i >= 1<<(bits-1))) {
			return nil, typeMismatch(t, v)
		}
		if le {
			return appendFixed(b, uint64(i), bits/8), nil
		}
		return AppendVarint(b, ZigzagEncode(i)), nil
	}

	u, ok := asUint64(v)
	if !ok || (bits < 64 && u >= 1<<bits) {
		return nil, typeMismatch(t, v)
	}
	if le {
		return appendFixed(b, u, bits/8), nil
	}
	return AppendVarint(b, u), nil
}

func encodeInt128(b []byte, t SType, v any) ([]byte, error) {
	n, ok := asBigInt(v)
	if !ok {
		return nil, typeMismatch(t, v)
	}

	if t.Kind.IsSigned() {
		if n.Cmp(minInt128) < 0 || n.Cmp(maxInt128) > 0 {
			return nil, typeMismatch(t, v)
		}
		if t.intEncoding() == EncodingLE {
			u := new(big.Int).Set(n)
			if u.Sign() < 0 {
				u.Add(u, bigTwo128)
			}
			return appendFixed128(b, u), nil
		}
		return AppendVarint128(b, ZigzagEncode128(n)), nil
	}

	if n.Sign() < 0 || n.Cmp(maxUint128) > 0 {
		return nil, typeMismatch(t, v)
	}
	if t.intEncoding() == EncodingLE {
		return appendFixed128(b, n), nil
	}
	return AppendVarint128(b, n), nil
}

// appendFixed appends the low size bytes of u, little endian.
func appendFixed(b []byte, u uint64, size int) []byte {
	for i := range size {
		b = append(b, byte(u>>(8*i)))
	}
	return b
}

func appendFixed128(b []byte, u *big.Int) []byte {
	var word [16]byte
	u.FillBytes(word[:])
	slices.Reverse(word[:])
	return append(b, word[:]...)
}

func (es *encodeState) encodeList(b []byte, t SType, v any) ([]byte, error) {
	l, ok := asList(v)
	if !ok {
		return nil, typeMismatch(t, v)
	}

	b = AppendVarint(b, uint64(len(l)))
	for i, e := range l {
		var err error
		if b, err = es.encode(b, *t.Elem, e, nil); err != nil {
			return nil, withPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return b, nil
}

func (es *encodeState) encodeMap(b []byte, t SType, v any) ([]byte, error) {
	var err error
	entry := func(k, val any) error {
		if b, err = es.encode(b, *t.Key, k, nil); err != nil {
			return err
		}
		if b, err = es.encode(b, *t.Elem, val, nil); err != nil {
			return withPath(err, fmt.Sprintf("[%v]", k))
		}
		return nil
	}

	switch m := v.(type) {
	case []MapEntry:
		b = AppendVarint(b, uint64(len(m)))
		for _, e := range m {
			if err := entry(e.Key, e.Value); err != nil {
				return nil, err
			}
		}
		return b, nil

	case [][2]any:
		b = AppendVarint(b, uint64(len(m)))
		for _, e := range m {
			if err := entry(e[0], e[1]); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	obj, ok := asStringMap(v)
	if !ok {
		return nil, typeMismatch(t, v)
	}

	// Go maps have no order, so write them sorted to keep output stable.
	b = AppendVarint(b, uint64(len(obj)))
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		if err := entry(k, obj[k]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// fieldValue finds the value for a struct field in obj, or in obj's foreign
// bag for foreign fields.
func (es *encodeState) fieldValue(obj map[string]any, name string, f *Field) (any, bool, error) {
	holder, key := obj, f.appName(name)
	if f.Foreign {
		holder, key = foreignBag(obj, false), name
	}

	var v any
	var ok bool
	if tag := es.schema.parentTag(f.Type); tag != "" {
		// The variant name lives on holder; the field holds the variant data,
		// which can be left out for variants that carry nothing.
		v = holder[key]
		_, ok = holder[tag]
	} else {
		v, ok = holder[key]
		ok = ok && v != nil
	}

	if ok && f.Optional && f.ElideDefault && f.Default != nil && valuesEqual(v, f.Default) {
		return nil, false, nil
	}
	if !ok && !f.Optional {
		return nil, false, newError(ErrMissingRequiredField, fmt.Sprintf("%q", key))
	}
	return v, ok, nil
}

// encodeStruct writes the bitfield followed by the fields that did not fit in
// it. variant is set for enum variant data, which carries its name under
// "type".
func (es *encodeState) encodeStruct(b []byte, st *StructSchema, v any, variant bool) ([]byte, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, newError(ErrTypeMismatch, fmt.Sprintf("expected struct, got %T", v))
	}

	if es.logger != nil {
		es.warnUntracked(st, obj, variant)
	}

	if st.hasBitfield() {
		var bits uint64
		n := 0
		for i := range st.Fields.Len() {
			name, f := st.Fields.At(i)
			if f.Skip || !(f.Optional || f.Inline) {
				continue
			}

			fv, present, err := es.fieldValue(obj, name, &f)
			if err != nil {
				return nil, withPath(err, name)
			}
			if f.Optional {
				if present {
					bits |= 1 << n
				}
				n++
			}
			if f.Inline && present {
				x, ok := fv.(bool)
				if !ok {
					return nil, withPath(typeMismatch(f.Type, fv), name)
				}
				if x {
					bits |= 1 << n
				}
				n++
			}
			if n > maxBitfieldBits {
				return nil, newError(ErrInvalidSchema, "too many optional and inline fields")
			}
		}
		b = AppendVarint(b, bits)
	}

	for i := range st.Fields.Len() {
		name, f := st.Fields.At(i)
		if f.Skip || f.Inline {
			continue
		}

		fv, present, err := es.fieldValue(obj, name, &f)
		if err != nil {
			return nil, withPath(err, name)
		}
		if !present {
			continue
		}
		parent := obj
		if f.Foreign {
			parent = foreignBag(obj, false)
		}
		if b, err = es.encode(b, f.Type, fv, parent); err != nil {
			return nil, withPath(err, name)
		}
	}

	return b, nil
}

// encodeEnum works out which variant v is, writes its tag, then its data.
func (es *encodeState) encodeEnum(b []byte, en *EnumSchema, v any, parent map[string]any) ([]byte, error) {
	var name string
	var data map[string]any

	if en.TypeFieldOnParent != "" && parent != nil {
		var ok bool
		if name, ok = parent[en.TypeFieldOnParent].(string); !ok {
			return nil, newError(ErrTypeMismatch, fmt.Sprintf("no variant name under %q", en.TypeFieldOnParent))
		}
		if v != nil {
			if data, ok = asObject(v); !ok {
				return nil, newError(ErrTypeMismatch, fmt.Sprintf("expected variant data, got %T", v))
			}
		}
	} else if s, ok := v.(string); ok {
		name = s
	} else {
		if data, ok = asObject(v); !ok {
			return nil, newError(ErrTypeMismatch, fmt.Sprintf("expected enum, got %T", v))
		}
		if name, ok = data[TypeKey].(string); !ok {
			return nil, newError(ErrTypeMismatch, "enum value has no \"type\"")
		}
	}

	foreign := false
	if name == UnknownVariant {
		inner, ok := asObject(data[DataKey])
		if !ok {
			return nil, newError(ErrTypeMismatch, "unknown variant without data")
		}
		if name, ok = inner[TypeKey].(string); !ok {
			return nil, newError(ErrTypeMismatch, "unknown variant data has no \"type\"")
		}
		data = inner
		foreign = true
	}

	tag, vr, err := en.variantTag(name, foreign)
	if err != nil {
		return nil, err
	}
	b = AppendVarint(b, tag)

	if vr.Data == nil {
		return b, nil
	}
	if data == nil {
		data = map[string]any{}
	}
	if b, err = es.encodeStruct(b, vr.Data, data, true); err != nil {
		return nil, withPath(err, name)
	}
	return b, nil
}

func (es *encodeState) warnUntracked(st *StructSchema, obj map[string]any, variant bool) {
	for k := range obj {
		if k == ForeignKey || (variant && k == TypeKey) {
			continue
		}
		if !structTracks(es.schema, st, k) {
			es.logger.Warn("schemaboi: value has a field the schema does not describe", slog.String("field", k))
		}
	}
}

func structTracks(s *Schema, st *StructSchema, key string) bool {
	for name, f := range st.Fields.All() {
		if f.Foreign {
			continue
		}
		if f.appName(name) == key || s.parentTag(f.Type) == key {
			return true
		}
	}
	return false
}
