package schemaboi

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noTypes = &Schema{}

func withEncoding(k Kind, enc IntEncoding) SType {
	return SType{Kind: k, Encoding: enc}
}

var roundtrips = []struct {
	t    SType
	in   any
	want any
}{
	{Primitive(KindBool), true, true},
	{Primitive(KindBool), false, false},
	{Primitive(KindString), "", ""},
	{Primitive(KindString), "hello, world", "hello, world"},
	{Primitive(KindBinary), []byte{0, 1, 2, 0xff}, []byte{0, 1, 2, 0xff}},
	{Primitive(KindID), "twas brillig", "twas brillig"},
	{Primitive(KindF32), float32(2.2), float32(2.2)},
	{Primitive(KindF32), 3, float32(3)},
	{Primitive(KindF64), 9891234567890.098, 9891234567890.098},
	{Primitive(KindU8), 200, uint64(200)},
	{Primitive(KindS8), -100, int64(-100)},
	{Primitive(KindS8), int8(-1), int64(-1)},
	{withEncoding(KindU16, EncodingLE), 0xbeef, uint64(0xbeef)},
	{withEncoding(KindS16, EncodingLE), -2, int64(-2)},
	{Primitive(KindU32), uint32(0xdeadbeef), uint64(0xdeadbeef)},
	{Primitive(KindS32), -17, int64(-17)},
	{withEncoding(KindU64, EncodingLE), uint64(0xdbbc596c24396f18), uint64(0xdbbc596c24396f18)},
	{Primitive(KindU64), uint64(math.MaxUint64), uint64(math.MaxUint64)},
	{Primitive(KindS64), math.MinInt64, int64(math.MinInt64)},
	{Primitive(KindS64), -2613115362782646504, int64(-2613115362782646504)},
	{Primitive(KindS64), 16.0, int64(16)},
	{ListOf(Primitive(KindU32)), []any{0, 1, 2, 3}, []any{uint64(0), uint64(1), uint64(2), uint64(3)}},
	{ListOf(Primitive(KindS32)), []int{-1, 2}, []any{int64(-1), int64(2)}},
	{ListOf(Primitive(KindString)), []string{}, []any{}},
	{ListOf(ListOf(Primitive(KindBool))), []any{[]any{true}, []any{}}, []any{[]any{true}, []any{}}},
	{MapOf(Primitive(KindString), Primitive(KindU32), MapObject),
		map[string]int{"foo": 1, "bar": 2},
		map[string]any{"foo": uint64(1), "bar": uint64(2)}},
}

func TestRoundtrip(t *testing.T) {
	for _, tt := range roundtrips {
		b, err := Encode(noTypes, tt.t, tt.in)
		require.NoError(t, err, "encoding %s %#v", tt.t, tt.in)

		got, err := Decode(noTypes, tt.t, b)
		require.NoError(t, err, "decoding %s %x", tt.t, b)

		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("roundtripping %s %#v (-want +got):\n%s", tt.t, tt.in, diff)
		}
	}
}

func TestRoundtripBigInts(t *testing.T) {
	two100 := new(big.Int).Lsh(bigOne, 100)

	tests := []struct {
		t    SType
		in   any
		want *big.Int
	}{
		{Primitive(KindU128), two100, two100},
		{Primitive(KindU128), 7, big.NewInt(7)},
		{Primitive(KindU128), maxUint128, maxUint128},
		{withEncoding(KindU128, EncodingLE), two100, two100},
		{Primitive(KindS128), minInt128, minInt128},
		{Primitive(KindS128), maxInt128, maxInt128},
		{withEncoding(KindS128, EncodingLE), -5, big.NewInt(-5)},
		{withEncoding(KindS128, EncodingLE), minInt128, minInt128},
		{SType{Kind: KindU32, DecodeAsBigInt: true}, 99, big.NewInt(99)},
		{SType{Kind: KindS8, DecodeAsBigInt: true}, -3, big.NewInt(-3)},
	}

	for _, tt := range tests {
		b, err := Encode(noTypes, tt.t, tt.in)
		require.NoError(t, err, "encoding %s %v", tt.t, tt.in)

		got, err := Decode(noTypes, tt.t, b)
		require.NoError(t, err)

		n, ok := got.(*big.Int)
		require.True(t, ok, "decoded %T", got)
		assert.Zero(t, tt.want.Cmp(n), "%s: want %s, got %s", tt.t, tt.want, n)
	}
}

func TestIntegerEncodings(t *testing.T) {
	b, err := Encode(noTypes, Primitive(KindU8), 205)
	require.NoError(t, err)
	assert.Equal(t, []byte{205}, b)

	b, err = Encode(noTypes, withEncoding(KindU8, EncodingVarint), 205)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 77}, b)

	b, err = Encode(noTypes, Primitive(KindS32), -2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, b)

	b, err = Encode(noTypes, withEncoding(KindU32, EncodingLE), 0x01020304)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3, 2, 1}, b)
}

func TestIntegerRange(t *testing.T) {
	for _, tt := range []struct {
		t SType
		v any
	}{
		{Primitive(KindU8), 256},
		{Primitive(KindU8), -1},
		{Primitive(KindS8), 128},
		{Primitive(KindS16), -40000},
		{Primitive(KindU32), uint64(1) << 32},
		{Primitive(KindU64), 1.5},
		{Primitive(KindS64), uint64(math.MaxUint64)},
		{Primitive(KindU128), -1},
		{Primitive(KindS128), new(big.Int).Add(maxInt128, bigOne)},
		{Primitive(KindU32), "12"},
	} {
		_, err := Encode(noTypes, tt.t, tt.v)
		assert.ErrorIs(t, err, ErrTypeMismatch, "encoding %v as %s", tt.v, tt.t)
	}

	// 300 as a varint is in range for the varint but not for a u8
	_, err := Decode(noTypes, withEncoding(KindU8, EncodingVarint), AppendVarint(nil, 300))
	assert.ErrorIs(t, err, ErrInvalidVarint)
}

func TestIDDictionary(t *testing.T) {
	typ := ListOf(Primitive(KindID))
	in := []any{"a", "b", "a", "a"}

	b, err := Encode(noTypes, typ, in)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 2, 'a', 2, 'b', 1, 1}, b)

	got, err := Decode(noTypes, typ, b)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	var ce ErrCorrupt
	_, err = Decode(noTypes, typ, []byte{1, 3})
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errBadIDRef, ce.Err)
}

func personSchema() *Schema {
	person := &StructSchema{}
	person.Fields.Set("name", Field{Type: Primitive(KindString), Optional: true})
	person.Fields.Set("age", Field{Type: Primitive(KindU32)})

	s := &Schema{ID: "people", Root: Ref("Person")}
	s.Types.Set("Person", StructDef(person))
	return s
}

type person struct {
	Name    string `sb:"name,omitempty"`
	Age     int    `sb:"age"`
	private int
	Ignored string `sb:"-"`
}

func TestStruct(t *testing.T) {
	s := personSchema()
	seph := []byte{1, 4, 's', 'e', 'p', 'h', 21}

	b, err := WriteRaw(s, map[string]any{"name": "seph", "age": 21})
	require.NoError(t, err)
	assert.Equal(t, seph, b)

	b, err = WriteRaw(s, person{Name: "seph", Age: 21, private: 5, Ignored: "x"})
	require.NoError(t, err)
	assert.Equal(t, seph, b)

	b, err = WriteRaw(s, &person{Age: 21})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 21}, b)

	v, err := ReadRaw(s, seph)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "seph", "age": uint64(21)}, v)

	// missing optional fields without a default read as nil
	v, err = ReadRaw(s, []byte{0, 21})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": nil, "age": uint64(21)}, v)

	b, err = WriteRaw(s, v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 21}, b)
}

func TestStructErrors(t *testing.T) {
	s := personSchema()

	_, err := WriteRaw(s, map[string]any{"name": "seph"})
	require.ErrorIs(t, err, ErrMissingRequiredField)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "age", pe.Path)

	_, err = WriteRaw(s, map[string]any{"age": "old"})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = WriteRaw(s, []any{1})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ReadRaw(s, []byte{1, 4, 's'})
	require.ErrorIs(t, err, ErrUnexpectedEOF)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "name", pe.Path)

	_, err = ReadRaw(s, []byte{1, 4, 's', 'e', 'p', 'h'})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)

	var ce ErrCorrupt
	_, err = ReadRaw(s, []byte{0, 21, 0})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errTrailingBytes, ce.Err)

	_, err = ReadRaw(s, []byte{2, 21})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errBadBitfieldLen, ce.Err)
}

func TestDefaultsAndSkip(t *testing.T) {
	st := &StructSchema{}
	st.Fields.Set("score", Field{Type: Primitive(KindS32), Optional: true, Default: int64(10), ElideDefault: true})
	st.Fields.Set("owner", Field{Type: Primitive(KindString), Default: "anon"})
	st.Fields.Set("cache", Field{Type: ListOf(Primitive(KindU8)), Skip: true, Default: []any{uint64(1)}})
	s := &Schema{ID: "defaults", Root: Ref("T")}
	s.Types.Set("T", StructDef(st))

	b, err := WriteRaw(s, map[string]any{"score": 10, "owner": "seph", "cache": []any{1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 4, 's', 'e', 'p', 'h'}, b)

	b, err = WriteRaw(s, map[string]any{"score": 3, "owner": "anon"})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 6, 4, 'a', 'n', 'o', 'n'}, b)

	// a default does not make a required field optional
	_, err = WriteRaw(s, map[string]any{"score": 3})
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	v, err := ReadRaw(s, []byte{0, 1, 'x'})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": int64(10), "owner": "x", "cache": []any{uint64(1)}}, v)

	// defaults are copied, not shared
	v.(map[string]any)["cache"].([]any)[0] = uint64(99)
	v, err = ReadRaw(s, []byte{0, 1, 'x'})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1)}, v.(map[string]any)["cache"])
}

func TestInlineBools(t *testing.T) {
	st := &StructSchema{}
	st.Fields.Set("a", Field{Type: Primitive(KindBool), Inline: true})
	st.Fields.Set("b", Field{Type: Primitive(KindBool), Inline: true, Optional: true})
	st.Fields.Set("c", Field{Type: Primitive(KindU8)})
	s := &Schema{ID: "flags", Root: Ref("Flags")}
	s.Types.Set("Flags", StructDef(st))

	tests := []struct {
		in    map[string]any
		bytes []byte
	}{
		{map[string]any{"a": true, "b": false, "c": uint64(7)}, []byte{3, 7}},
		{map[string]any{"a": true, "b": true, "c": uint64(7)}, []byte{7, 7}},
		{map[string]any{"a": false, "c": uint64(1)}, []byte{0, 1}},
		{map[string]any{"a": false, "b": true, "c": uint64(1)}, []byte{6, 1}},
	}

	for _, tt := range tests {
		b, err := WriteRaw(s, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.bytes, b, "encoding %v", tt.in)

		v, err := ReadRaw(s, b)
		require.NoError(t, err)
		assert.Equal(t, tt.in, v)
	}

	_, err := WriteRaw(s, map[string]any{"a": 1, "c": 1})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestBitfieldLimit(t *testing.T) {
	st := &StructSchema{}
	for i := range maxBitfieldBits + 1 {
		st.Fields.Set(string(rune('a'+i%26))+string(rune('a'+i/26)), Field{Type: Primitive(KindU8), Optional: true})
	}
	s := &Schema{ID: "wide", Root: Ref("Wide")}
	s.Types.Set("Wide", StructDef(st))
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
}

func TestRecursiveTypes(t *testing.T) {
	// A takes no bytes, and holds a B, which holds an A.
	a := &StructSchema{}
	a.Fields.Set("b", Field{Type: Ref("B")})
	b := &StructSchema{}
	b.Fields.Set("label", Field{Type: Primitive(KindString), Optional: true})
	b.Fields.Set("a", Field{Type: Ref("A")})
	loop := &Schema{ID: "loop", Root: Ref("A")}
	loop.Types.Set("A", StructDef(a))
	loop.Types.Set("B", StructDef(b))
	require.NoError(t, loop.Validate())

	b.Fields.Set("label", Field{Type: Primitive(KindString)})
	err := loop.Validate()
	require.ErrorIs(t, err, ErrInvalidSchema)

	// Recursion through a list or an optional field is fine.
	node := &StructSchema{}
	node.Fields.Set("children", Field{Type: ListOf(Ref("Node"))})
	node.Fields.Set("parent", Field{Type: Ref("Node"), Optional: true})
	tree := &Schema{ID: "tree", Root: Ref("Node")}
	tree.Types.Set("Node", StructDef(node))
	require.NoError(t, tree.Validate())

	v, err := ReadRaw(tree, []byte{0, 1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"children": []any{map[string]any{"children": []any{}, "parent": nil}},
		"parent":   nil,
	}, v)

	deep := append(bytes.Repeat([]byte{0, 1}, maxDepth), 0, 0)
	var ce ErrCorrupt
	_, err = ReadRaw(tree, deep)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errTooDeep, ce.Err)
}

func shapesSchema() *Schema {
	circle := &StructSchema{}
	circle.Fields.Set("radius", Field{Type: Primitive(KindF32)})

	shape := &EnumSchema{}
	shape.Variants.Set("Empty", Variant{})
	shape.Variants.Set("Circle", Variant{Data: circle})

	s := &Schema{ID: "shapes", Root: Ref("Shape")}
	s.Types.Set("Shape", EnumDef(shape))
	return s
}

func TestEnum(t *testing.T) {
	s := shapesSchema()

	b, err := WriteRaw(s, "Empty")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b)

	v, err := ReadRaw(s, b)
	require.NoError(t, err)
	assert.Equal(t, "Empty", v)

	b, err = WriteRaw(s, map[string]any{"type": "Empty"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b)

	circle := map[string]any{"type": "Circle", "radius": float32(1.5)}
	b, err = WriteRaw(s, circle)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0x00, 0x00, 0xc0, 0x3f}, b)

	v, err = ReadRaw(s, b)
	require.NoError(t, err)
	assert.Equal(t, circle, v)

	_, err = WriteRaw(s, "Square")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = WriteRaw(s, map[string]any{"radius": 1})
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var ce ErrCorrupt
	_, err = ReadRaw(s, []byte{5})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errBadVariant, ce.Err)
}

func TestEnumRename(t *testing.T) {
	s := shapesSchema()
	td, _ := s.Types.Get("Shape")
	v, _ := td.Enum.Variants.Get("Circle")
	v.RenameTo = "circle"
	td.Enum.Variants.Set("Circle", v)

	b, err := WriteRaw(s, map[string]any{"type": "circle", "radius": 2})
	require.NoError(t, err)

	got, err := ReadRaw(s, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "circle", "radius": float32(2)}, got)

	_, err = WriteRaw(s, map[string]any{"type": "Circle", "radius": 2})
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestTypeFieldOnParent(t *testing.T) {
	sized := &StructSchema{}
	sized.Fields.Set("size", Field{Type: Primitive(KindU32)})

	kind := &EnumSchema{TypeFieldOnParent: "kind"}
	kind.Variants.Set("Plain", Variant{})
	kind.Variants.Set("Sized", Variant{Data: sized})

	item := &StructSchema{}
	item.Fields.Set("name", Field{Type: Primitive(KindString)})
	item.Fields.Set("detail", Field{Type: Ref("Kind")})

	s := &Schema{ID: "items", Root: Ref("Item")}
	s.Types.Set("Item", StructDef(item))
	s.Types.Set("Kind", EnumDef(kind))

	tests := []struct {
		in    map[string]any
		bytes []byte
	}{
		{
			map[string]any{"name": "a", "kind": "Sized", "detail": map[string]any{"size": uint64(3)}},
			[]byte{1, 'a', 1, 3},
		},
		{
			map[string]any{"name": "b", "kind": "Plain"},
			[]byte{1, 'b', 0},
		},
	}

	for _, tt := range tests {
		b, err := WriteRaw(s, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.bytes, b)

		v, err := ReadRaw(s, b)
		require.NoError(t, err)
		assert.Equal(t, tt.in, v)
	}

	_, err := WriteRaw(s, map[string]any{"name": "c"})
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestMapForms(t *testing.T) {
	obj := MapOf(Primitive(KindString), Primitive(KindU32), MapObject)
	b, err := Encode(noTypes, obj, map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 1, 'a', 1, 1, 'b', 2}, b)

	entries := MapOf(Primitive(KindString), Primitive(KindU32), MapEntries)
	b, err = Encode(noTypes, entries, []MapEntry{{"b", 2}, {"a", 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 1, 'b', 2, 1, 'a', 1}, b)

	v, err := Decode(noTypes, entries, b)
	require.NoError(t, err)
	assert.Equal(t, []MapEntry{{"b", uint64(2)}, {"a", uint64(1)}}, v)

	v, err = Decode(noTypes, obj, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": uint64(1), "b": uint64(2)}, v)

	pairs := MapOf(Primitive(KindID), Primitive(KindString), MapPairs)
	b, err = Encode(noTypes, pairs, [][2]any{{"x", "y"}, {"x", "z"}})
	require.NoError(t, err)

	v, err = Decode(noTypes, pairs, b)
	require.NoError(t, err)
	assert.Equal(t, [][2]any{{"x", "y"}, {"x", "z"}}, v)

	var ce ErrCorrupt
	_, err = Decode(noTypes, obj, []byte{100, 1, 'a', 1})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, errBadMapSize, ce.Err)
}

func TestErrorPaths(t *testing.T) {
	player := &StructSchema{}
	player.Fields.Set("score", Field{Type: Primitive(KindU32)})
	game := &StructSchema{}
	game.Fields.Set("players", Field{Type: ListOf(Ref("Player"))})

	s := &Schema{ID: "game", Root: Ref("Game")}
	s.Types.Set("Game", StructDef(game))
	s.Types.Set("Player", StructDef(player))

	_, err := WriteRaw(s, map[string]any{"players": []any{
		map[string]any{"score": 1},
		map[string]any{"score": "lots"},
	}})

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "players[1].score", pe.Path)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "players[1].score")
}

func TestUntrackedFieldsWarn(t *testing.T) {
	var buf bytes.Buffer
	e := Encoder{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	b, err := e.MarshalRaw(personSchema(), map[string]any{"age": 1, "shoe": 43})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1}, b)
	assert.Contains(t, buf.String(), "field=shoe")
}

func TestAsObject(t *testing.T) {
	obj, ok := asObject(person{Name: "x", Age: 0, private: 1})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "x", "age": 0}, obj)

	type untagged struct {
		Title string
		Tags  []string
	}
	obj, ok = asObject(&untagged{Title: "t"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Title": "t"}, obj, spew.Sdump(obj))

	_, ok = asObject(map[int]any{1: 1})
	assert.False(t, ok)

	_, ok = asObject((*person)(nil))
	assert.False(t, ok)
}

func TestCopyForeign(t *testing.T) {
	src := map[string]any{"name": "a", ForeignKey: map[string]any{"email": "a@b", "phone": "1"}}
	dst := map[string]any{"name": "b", ForeignKey: map[string]any{"phone": "2"}}

	CopyForeign(dst, src)
	assert.Equal(t, map[string]any{"email": "a@b", "phone": "2"}, dst[ForeignKey])

	empty := map[string]any{}
	CopyForeign(empty, map[string]any{})
	assert.NotContains(t, empty, ForeignKey)
}
