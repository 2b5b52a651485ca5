package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgryski/go-ddmin"
	schemaboi "github.com/josephg/schemaboi-sub000"
)

// sbmin shrinks a document that fails to read down to the smallest input
// failing the same way, for turning fuzzer finds into test cases.

func readErr(b []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, _, err = schemaboi.Read(b)
	return err
}

func main() {
	out := flag.String("o", "", "write the minimized document here")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: sbmin [-o out] document")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	want := readErr(data)
	if want == nil {
		log.Fatalf("%s reads without error, nothing to minimize", flag.Arg(0))
	}
	log.Printf("minimizing %d bytes failing with: %v", len(data), want)

	small := ddmin.Minimize(data, func(d []byte) ddmin.Result {
		err := readErr(d)
		switch {
		case err == nil:
			return ddmin.Pass
		case err.Error() == want.Error():
			return ddmin.Fail
		}
		return ddmin.Unresolved
	})

	fmt.Print(hex.Dump(small))

	if *out != "" {
		if err := os.WriteFile(*out, small, 0o644); err != nil {
			log.Fatal(err)
		}
	}
}
