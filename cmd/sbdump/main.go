package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	schemaboi "github.com/josephg/schemaboi-sub000"
)

func process(fname string, b []byte, showSchema bool, local *schemaboi.Schema) {
	var d schemaboi.Decoder

	var s *schemaboi.Schema
	var v any
	var err error
	if local != nil {
		s, v, err = d.UnmarshalAs(local, b)
	} else {
		s, v, err = d.Unmarshal(b)
	}

	if err != nil {
		log.Fatalf("error processing %s: %s", fname, err)
	}

	if showSchema {
		fmt.Print(s)
	}
	spew.Dump(v)
}

func main() {
	showSchema := flag.Bool("schema", false, "print the document's schema")
	schemaFile := flag.String("as", "", "read documents as this YAML schema")
	flag.Parse()

	var local *schemaboi.Schema
	if *schemaFile != "" {
		y, err := os.ReadFile(*schemaFile)
		if err != nil {
			log.Fatal(err)
		}
		if local, err = schemaboi.LoadSchema(y); err != nil {
			log.Fatalf("error loading %s: %s", *schemaFile, err)
		}
	}

	if flag.NArg() == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		process("stdin", b, *showSchema, local)
		return
	}

	for _, arg := range flag.Args() {
		b, err := os.ReadFile(arg)
		if err != nil {
			log.Fatal(err)
		}
		process(arg, b, *showSchema, local)
	}
}
