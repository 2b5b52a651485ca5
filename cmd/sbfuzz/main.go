package main

import (
	crand "crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	mrand "math/rand"

	schemaboi "github.com/josephg/schemaboi-sub000"
)

// Throws random payloads behind a real schema at the decoder and prints what
// it makes of them.
func main() {
	n := flag.Int("n", 0, "number of documents to try, 0 runs forever")
	flag.Parse()

	s, err := schemaboi.Expand(&schemaboi.AppSchema{
		ID:   "sbfuzz",
		Root: "list<Item>",
		Types: []schemaboi.AppType{
			{Name: "Item", Fields: []schemaboi.AppField{
				{Name: "name", Type: "id"},
				{Name: "count", Type: "u32", Default: 0},
				{Name: "kind", Type: "Kind"},
				{Name: "attrs", Type: "map<string>", MapForm: "entries"},
			}},
			{Name: "Kind", Variants: []schemaboi.AppVariant{
				{Name: "Plain"},
				{Name: "Sized", Fields: []schemaboi.AppField{{Name: "size", Type: "s128"}}},
			}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	header, err := schemaboi.Write(s, []any{})
	if err != nil {
		log.Fatal(err)
	}
	// drop the empty list
	header = header[:len(header)-1]

	var decoder schemaboi.Decoder
	decoder.MaxSize = 1 << 20

	for i := 0; *n == 0 || i < *n; i++ {
		l := mrand.Intn(200)
		b := make([]byte, l)
		crand.Read(b)
		doc := make([]byte, 0, len(header)+l)
		doc = append(doc, header...)
		doc = append(doc, b...)
		fmt.Println(hex.Dump(doc))
		_, _, err := decoder.Unmarshal(doc)
		fmt.Println("err=", err)
	}
}
