package schemaboi_test

import (
	"testing"

	schemaboi "github.com/josephg/schemaboi-sub000"
)

type planet struct {
	Pos               int      `sb:"pos"`
	Name              string   `sb:"name"`
	MassEarths        float64  `sb:"mass_earths"`
	NotableSatellites []string `sb:"notable_satellites"`
}

var solarSystemSchema = func() *schemaboi.Schema {
	s, err := schemaboi.LoadSchema([]byte(`
id: solar
root: System
types:
  - name: System
    fields:
      - {name: galaxy, type: string}
      - {name: age, type: u32}
      - {name: stars, type: list<id>}
      - {name: planets, type: list<Planet>}
      - {name: title, type: string, default: ""}
  - name: Planet
    fields:
      - {name: pos, type: u8}
      - {name: name, type: string}
      - {name: mass_earths, type: f64}
      - {name: notable_satellites, type: list<string>}
`))
	if err != nil {
		panic(err)
	}
	return s
}()

var solarSystem = map[string]any{
	"galaxy": "Milky Way",
	"age":    4568,
	"stars":  []string{"Sun"},
	"title":  "Interesting facts about Solar system",
	"planets": []planet{
		{1, "Mercury", 0.055, []string{}},
		{2, "Venus", 0.815, []string{}},
		{3, "Earth", 1.0, []string{"Moon"}},
		{4, "Mars", 0.107, []string{"Phobos", "Deimos"}},
		{5, "Jupiter", 317.83, []string{"Io", "Europa", "Ganymede", "Callisto"}},
		{6, "Saturn", 95.16, []string{"Titan", "Rhea", "Enceladus"}},
		{7, "Uranus", 14.536, []string{"Oberon", "Titania", "Miranda", "Ariel", "Umbriel"}},
		{8, "Neptune", 17.15, []string{"Tritan"}},
	},
}

func benchmarkEncode(b *testing.B, c schemaboi.Compressor) {
	enc := schemaboi.NewEncoder()
	enc.Compression = c
	enc.CompressionThreshold = 0

	for b.Loop() {
		_, err := enc.Marshal(solarSystemSchema, solarSystem)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeComplexData(b *testing.B) {
	benchmarkEncode(b, nil)
}

func BenchmarkEncodeAndSnappyComplexData(b *testing.B) {
	benchmarkEncode(b, schemaboi.SnappyCompressor{})
}

func BenchmarkEncodeAndZlibComplexData(b *testing.B) {
	benchmarkEncode(b, schemaboi.ZlibCompressor{Level: schemaboi.ZlibDefaultCompression})
}

func BenchmarkEncodeAndZstdComplexData(b *testing.B) {
	benchmarkEncode(b, schemaboi.ZstdCompressor{})
}

func BenchmarkDecodeComplexData(b *testing.B) {
	doc, err := schemaboi.Write(solarSystemSchema, solarSystem)
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, _, err := schemaboi.Read(doc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeWithMergeCache(b *testing.B) {
	doc, err := schemaboi.Write(solarSystemSchema, solarSystem)
	if err != nil {
		b.Fatal(err)
	}

	d := schemaboi.Decoder{Cache: &schemaboi.MergeCache{}}
	for b.Loop() {
		if _, _, err := d.UnmarshalAs(solarSystemSchema, doc); err != nil {
			b.Fatal(err)
		}
	}
}
