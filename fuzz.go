//go:build gofuzz

package schemaboi

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Fuzz reads a document, writes it back with its own schema and checks the
// second read agrees with the first.
func Fuzz(data []byte) int {
	h, err := readHeader(data)
	if err != nil {
		return 0
	}
	if h.compression != CompressionNone {
		// ignore compressed data
		return 0
	}

	s, v, err := Read(data)
	if err != nil {
		return 0
	}

	enc, err := Write(s, v)
	if err != nil {
		panic("unable to write: " + err.Error())
	}

	s2, v2, err := Read(enc)
	if err != nil {
		panic("unable to read back: " + err.Error())
	}

	if diff := cmp.Diff(v, v2, cmpopts.EquateNaNs()); diff != "" {
		panic("values differ after a round trip:\n" + diff)
	}
	if s.String() != s2.String() {
		panic("schemas differ after a round trip")
	}

	return 1
}

type fuzzPoint struct {
	X     int64   `sb:"x"`
	Y     int64   `sb:"y"`
	Label string  `sb:"label,omitempty"`
	Tags  []any   `sb:"tags,omitempty"`
	Scale float64 `sb:"scale,omitempty"`
	Seen  bool    `sb:"seen"`
}

var fuzzSchema = func() *Schema {
	s, err := LoadSchema([]byte(`
id: fuzz
root: list<Point>
types:
  - name: Point
    fields:
      - {name: x, type: s64}
      - {name: y, type: s64}
      - {name: label, type: string, default: ""}
      - {name: tags, type: list<id>, optional: true}
      - {name: scale, type: f64, optional: true}
      - {name: seen, type: bool}
`))
	if err != nil {
		panic(err)
	}
	return s
}()

// FuzzStructure decodes data as a list of points and, if that works, encodes
// the points again from Go structs.
func FuzzStructure(data []byte) int {
	v, err := ReadRaw(fuzzSchema, data)
	if err != nil {
		return 0
	}

	var points []fuzzPoint
	for _, p := range v.([]any) {
		obj := p.(map[string]any)
		fp := fuzzPoint{
			X:    obj["x"].(int64),
			Y:    obj["y"].(int64),
			Seen: obj["seen"].(bool),
		}
		fp.Label, _ = obj["label"].(string)
		fp.Tags, _ = obj["tags"].([]any)
		fp.Scale, _ = obj["scale"].(float64)
		points = append(points, fp)
	}

	if _, err := WriteRaw(fuzzSchema, points); err != nil {
		panic("unable to write points: " + err.Error())
	}
	return 1
}
