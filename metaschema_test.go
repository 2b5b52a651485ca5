package schemaboi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaschemaFixedPoint(t *testing.T) {
	require.NoError(t, Metaschema.Validate())

	b, err := EncodeSchema(Metaschema)
	require.NoError(t, err)

	s, err := DecodeSchema(b)
	require.NoError(t, err)
	require.Equal(t, Metaschema, s)

	b2, err := EncodeSchema(s)
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestSchemaRoundtrip(t *testing.T) {
	for _, y := range []string{drawing, peopleV1, peopleV2, shapesV2} {
		s := mustLoad(t, y)

		b, err := EncodeSchema(s)
		require.NoError(t, err)

		got, err := DecodeSchema(b)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestSchemaDefaultsRoundtrip(t *testing.T) {
	s := mustLoad(t, `
id: settings
root: Settings
types:
  - name: Settings
    fields:
      - {name: theme, type: Theme, default: Dark}
      - {name: fonts, type: list<string>, default: [mono, sans]}
      - {name: size, type: u128, default: 12}
      - {name: scale, type: f32, default: 1.5}
  - name: Theme
    variants: [Light, Dark]
`)

	b, err := EncodeSchema(s)
	require.NoError(t, err)
	got, err := DecodeSchema(b)
	require.NoError(t, err)
	require.Equal(t, s.String(), got.String())

	td, _ := got.Types.Get("Settings")
	want := map[string]any{
		"theme": "Dark",
		"fonts": []any{"mono", "sans"},
		"scale": float32(1.5),
	}
	for name, v := range want {
		f, _ := td.Struct.Fields.Get(name)
		assert.Equal(t, v, f.Default, name)
	}

	size, _ := td.Struct.Fields.Get("size")
	n, ok := size.Default.(*big.Int)
	require.True(t, ok, "size default is %T", size.Default)
	assert.Zero(t, n.Cmp(big.NewInt(12)))

	v, err := ReadRaw(got, []byte{0})
	require.NoError(t, err)
	assert.Equal(t, "Dark", v.(map[string]any)["theme"])
}

func TestFingerprint(t *testing.T) {
	a, err := mustLoad(t, peopleV1).Fingerprint()
	require.NoError(t, err)
	b, err := mustLoad(t, peopleV1).Fingerprint()
	require.NoError(t, err)
	c, err := mustLoad(t, peopleV2).Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSchemaFromValueErrors(t *testing.T) {
	for _, v := range []any{
		nil,
		map[string]any{},
		map[string]any{"id": "x", "root": map[string]any{"type": "Primitive", "kind": "u256"}},
		map[string]any{"id": "x", "root": map[string]any{"type": "Blob"}},
		map[string]any{"id": "x", "root": map[string]any{"type": "Ref", "key": "A"}, "types": []MapEntry{
			{Key: "A", Value: map[string]any{"type": "Union"}},
		}},
	} {
		_, err := SchemaFromValue(v)
		assert.ErrorIs(t, err, ErrInvalidSchema, "%v", v)
	}
}
