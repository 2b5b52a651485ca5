package schemaboi

import (
	"encoding/binary"
	"fmt"
)

// A document is self describing:
//
//	"SBOI" | version | flags | schema | payload | [checksum]
//
// The low nibble of flags holds the payload's CompressionType and the high
// bit says an 8 byte SipHash of everything before it follows the payload.
// The schema is encoded with Metaschema.

// Write encodes v as the root of s, as a self-describing document.
func Write(s *Schema, v any) ([]byte, error) {
	return NewEncoder().Marshal(s, v)
}

// Read decodes a document written by Write, returning the schema stored in
// it along with the value.
func Read(b []byte) (*Schema, any, error) {
	var d Decoder
	return d.Unmarshal(b)
}

// ReadAs decodes a document for an application using schema local. The
// document's schema is merged with local, and the merged schema is returned.
func ReadAs(local *Schema, b []byte) (*Schema, any, error) {
	var d Decoder
	return d.UnmarshalAs(local, b)
}

// ReadSchema returns the schema stored in a document without decoding the
// payload.
func ReadSchema(b []byte) (*Schema, error) {
	var d Decoder
	s, _, err := d.readDocument(b, false)
	return s, err
}

// Marshal encodes v as the root of s, as a self-describing document.
func (e *Encoder) Marshal(s *Schema, v any) ([]byte, error) {
	body, err := e.MarshalRaw(s, v)
	if err != nil {
		return nil, err
	}

	schema, err := EncodeSchema(s)
	if err != nil {
		return nil, err
	}

	ctype := CompressionNone
	if e.Compression != nil && len(body) >= e.CompressionThreshold {
		if body, err = e.Compression.compress(body); err != nil {
			return nil, err
		}
		ctype = e.Compression.Type()
	}

	flags := byte(ctype)
	if e.Checksum {
		flags |= flagChecksum
	}

	b := make([]byte, 0, headerSize+len(schema)+len(body)+checksumSize)
	b = append(b, magicHeader...)
	b = append(b, documentVersion, flags)
	b = append(b, schema...)
	b = append(b, body...)

	if e.Checksum {
		b = binary.LittleEndian.AppendUint64(b, checksum(b))
	}
	return b, nil
}

type documentHeader struct {
	version     byte
	compression CompressionType
	checksum    bool
}

func readHeader(b []byte) (documentHeader, error) {
	if len(b) < headerSize || string(b[:len(magicHeader)]) != magicHeader {
		return documentHeader{}, ErrBadHeader
	}

	var h documentHeader
	h.version = b[4]
	if h.version != documentVersion {
		return documentHeader{}, fmt.Errorf("%w: %d", ErrBadVersion, h.version)
	}

	flags := b[5]
	if flags&^(flagCompressionMask|flagChecksum) != 0 {
		return documentHeader{}, ErrBadHeader
	}
	h.compression = CompressionType(flags & flagCompressionMask)
	h.checksum = flags&flagChecksum != 0
	return h, nil
}

// Unmarshal decodes a self-describing document.
func (d *Decoder) Unmarshal(b []byte) (*Schema, any, error) {
	s, body, err := d.readDocument(b, true)
	if err != nil {
		return nil, nil, err
	}

	v, err := d.UnmarshalRaw(s, body)
	if err != nil {
		return nil, nil, err
	}
	return s, v, nil
}

// UnmarshalAs decodes a self-describing document for an application using
// schema local. Data the application does not know about is kept under
// "_foreign" and "_unknown" so that it survives being written back with the
// returned schema.
func (d *Decoder) UnmarshalAs(local *Schema, b []byte) (*Schema, any, error) {
	remote, body, err := d.readDocument(b, true)
	if err != nil {
		return nil, nil, err
	}

	var merged *Schema
	if d.Cache != nil {
		merged, err = d.Cache.Merge(remote, local)
	} else {
		m := Merger{Logger: d.Logger}
		merged, err = m.Merge(remote, local)
	}
	if err != nil {
		return nil, nil, err
	}

	v, err := d.UnmarshalRaw(merged, body)
	if err != nil {
		return nil, nil, err
	}
	return merged, v, nil
}

// readDocument checks the header and checksum and reads the schema. With
// payload set it also decompresses the payload.
func (d *Decoder) readDocument(b []byte, payload bool) (*Schema, []byte, error) {
	h, err := readHeader(b)
	if err != nil {
		return nil, nil, err
	}

	if h.checksum {
		if len(b) < headerSize+checksumSize {
			return nil, nil, ErrUnexpectedEOF
		}
		end := len(b) - checksumSize
		if binary.LittleEndian.Uint64(b[end:]) != checksum(b[:end]) {
			return nil, nil, ErrBadChecksum
		}
		b = b[:end]
	}

	s, n, err := decodeSchemaPrefix(b[headerSize:])
	if err != nil {
		return nil, nil, fmt.Errorf("schemaboi: reading document schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	body := b[headerSize+n:]
	if !payload || h.compression == CompressionNone {
		return s, body, nil
	}

	c, err := decompressorFor(h.compression)
	if err != nil {
		return nil, nil, err
	}
	if body, err = c.decompress(body, d.MaxSize); err != nil {
		return nil, nil, err
	}
	return s, body, nil
}
