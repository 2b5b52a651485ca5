package schemaboi

import (
	"errors"
	"strings"
)

// Errors
var (
	ErrIncompatibleSchema    = errors.New("incompatible schema")
	ErrIncompatibleFieldType = errors.New("incompatible field type")
	ErrInvalidSchema         = errors.New("invalid schema")
	ErrMissingType           = errors.New("missing type")

	ErrTypeMismatch         = errors.New("value does not match schema type")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnknownVariant       = errors.New("unknown enum variant")

	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrInvalidVarint = errors.New("invalid varint")

	ErrBadHeader          = errors.New("bad header: not a valid schemaboi document")
	ErrBadVersion         = errors.New("bad header: unsupported document version")
	ErrBadChecksum        = errors.New("document checksum mismatch")
	ErrUnknownCompression = errors.New("unknown compression type")

	ErrTooLarge = errors.New("document too large")
)

// ErrCorrupt is returned if the document was corrupt
type ErrCorrupt struct{ Err string }

// internal constants used for corrupt
var (
	errBadSliceSize   = "bad size for list"
	errBadMapSize     = "bad size for map"
	errBadOffset      = "bad offset"
	errBadIDRef       = "id back-reference out of range"
	errBadVariant     = "enum variant index out of range"
	errBadBool        = "bool byte is neither 0 nor 1"
	errTrailingBytes  = "trailing bytes after value"
	errBadLength      = "decompressed length does not match"
	errBadBitfieldLen = "bitfield has more bits than the struct declares"
	errTooDeep        = "values nested too deeply"
)

func (c ErrCorrupt) Error() string { return "schemaboi: corrupt document: " + c.Err }

// PathError annotates one of the sentinel errors above with where it happened.
// Path is a dotted walk from the value (or schema) root, eg "root.shapes[2].radius".
type PathError struct {
	Path   string
	Detail string
	Err    error
}

func (e *PathError) Error() string {
	var sb strings.Builder
	sb.WriteString("schemaboi: ")
	sb.WriteString(e.Err.Error())
	if e.Path != "" {
		sb.WriteString(" at ")
		sb.WriteString(e.Path)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *PathError) Unwrap() error { return e.Err }

func newError(err error, detail string) error {
	return &PathError{Err: err, Detail: detail}
}

// withPath prefixes seg onto the path of err as the stack unwinds. Segments
// beginning with '[' attach without a separating dot.
func withPath(err error, seg string) error {
	var pe *PathError
	if !errors.As(err, &pe) {
		return err
	}
	switch {
	case pe.Path == "":
		pe.Path = seg
	case strings.HasPrefix(pe.Path, "["):
		pe.Path = seg + pe.Path
	default:
		pe.Path = seg + "." + pe.Path
	}
	return err
}
