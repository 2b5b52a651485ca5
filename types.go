package schemaboi

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of an SType. Primitive kinds come first, in the
// order the metaschema lists them.
type Kind uint8

const (
	KindBool Kind = iota
	KindString
	KindBinary
	KindID
	KindF32
	KindF64
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindS8
	KindS16
	KindS32
	KindS64
	KindS128

	KindRef
	KindList
	KindMap
)

var kindNames = [...]string{
	KindBool:   "bool",
	KindString: "string",
	KindBinary: "binary",
	KindID:     "id",
	KindF32:    "f32",
	KindF64:    "f64",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindU128:   "u128",
	KindS8:     "s8",
	KindS16:    "s16",
	KindS32:    "s32",
	KindS64:    "s64",
	KindS128:   "s128",
	KindRef:    "ref",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// numPrimitives is the number of primitive kinds.
const numPrimitives = int(KindRef)

// ParsePrimitive looks up a primitive kind by name.
func ParsePrimitive(name string) (Kind, bool) {
	for k := Kind(0); int(k) < numPrimitives; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) IsPrimitive() bool { return k < KindRef }
func (k Kind) IsInt() bool       { return k >= KindU8 && k <= KindS128 }
func (k Kind) IsSigned() bool    { return k >= KindS8 && k <= KindS128 }

// IntBits returns the width of an integer kind, or 0.
func (k Kind) IntBits() int {
	switch k {
	case KindU8, KindS8:
		return 8
	case KindU16, KindS16:
		return 16
	case KindU32, KindS32:
		return 32
	case KindU64, KindS64:
		return 64
	case KindU128, KindS128:
		return 128
	}
	return 0
}

// IntEncoding selects how an integer is written.
type IntEncoding uint8

const (
	// EncodingDefault is fixed width for 8 bit integers and varint otherwise.
	EncodingDefault IntEncoding = iota
	EncodingLE
	EncodingVarint
)

func (e IntEncoding) String() string {
	switch e {
	case EncodingLE:
		return "le"
	case EncodingVarint:
		return "varint"
	}
	return "default"
}

// MapForm is the in-memory shape a decoded map takes. It never changes the
// bytes on the wire.
type MapForm uint8

const (
	MapObject  MapForm = iota // map[string]any
	MapEntries                // []MapEntry, in wire order
	MapPairs                  // [][2]any, in wire order
)

var mapFormNames = [...]string{"object", "entries", "pairs"}

func (f MapForm) String() string {
	if int(f) < len(mapFormNames) {
		return mapFormNames[f]
	}
	return fmt.Sprintf("MapForm(%d)", f)
}

// SType is a type expression. Which of the fields mean anything depends on
// Kind: Encoding and DecodeAsBigInt for integers, Ref for references into
// the schema's type table, Elem for lists, and Key, Elem and MapForm for maps.
type SType struct {
	Kind           Kind
	Encoding       IntEncoding
	DecodeAsBigInt bool
	Ref            string
	Key            *SType
	Elem           *SType
	MapForm        MapForm
}

func Primitive(k Kind) SType { return SType{Kind: k} }

func Ref(name string) SType { return SType{Kind: KindRef, Ref: name} }

func ListOf(elem SType) SType { return SType{Kind: KindList, Elem: &elem} }

func MapOf(key, value SType, form MapForm) SType {
	return SType{Kind: KindMap, Key: &key, Elem: &value, MapForm: form}
}

// intEncoding resolves EncodingDefault.
func (t SType) intEncoding() IntEncoding {
	if t.Encoding != EncodingDefault {
		return t.Encoding
	}
	if t.Kind.IntBits() == 8 {
		return EncodingLE
	}
	return EncodingVarint
}

func (t SType) String() string {
	switch t.Kind {
	case KindRef:
		return t.Ref
	case KindList:
		return "list<" + t.Elem.String() + ">"
	case KindMap:
		return "map<" + t.Key.String() + ", " + t.Elem.String() + ">"
	}
	return t.Kind.String()
}

// sameShape reports whether a and b have the same wire shape. Integer
// encodings and decode hints are ignored; references compare by name.
func sameShape(a, b SType) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindRef:
		return a.Ref == b.Ref
	case KindList:
		return sameShape(*a.Elem, *b.Elem)
	case KindMap:
		return sameShape(*a.Key, *b.Key) && sameShape(*a.Elem, *b.Elem)
	}
	return true
}

// Field describes one struct field.
type Field struct {
	Type SType

	// Default is used when the field is absent from the data. Nil means no
	// default.
	Default any

	// Optional fields get a presence bit in the struct's bitfield.
	Optional bool

	// Skip fields are never written; decoding fills in Default.
	Skip bool

	// Foreign fields are on the wire but unknown to the application. Their
	// values live under "_foreign".
	Foreign bool

	// RenameTo is the key used in application values, if different from the
	// wire name.
	RenameTo string

	// Inline bools are stored in the bitfield.
	Inline bool

	// ElideDefault leaves values equal to Default off the wire.
	ElideDefault bool
}

func (f *Field) appName(name string) string {
	if f.RenameTo != "" {
		return f.RenameTo
	}
	return name
}

// StructSchema is an ordered set of named fields.
type StructSchema struct {
	Fields  OrderedMap[Field]
	Foreign bool
}

// bitfieldBits counts the bits a value of this struct can use.
func (s *StructSchema) bitfieldBits() int {
	n := 0
	for _, f := range s.Fields.All() {
		if f.Skip {
			continue
		}
		if f.Optional {
			n++
		}
		if f.Inline {
			n++
		}
	}
	return n
}

func (s *StructSchema) hasBitfield() bool {
	for _, f := range s.Fields.All() {
		if !f.Skip && (f.Optional || f.Inline) {
			return true
		}
	}
	return false
}

// Variant is one enum variant. Data is nil for variants that carry nothing.
type Variant struct {
	Data     *StructSchema
	Foreign  bool
	Skip     bool
	RenameTo string
}

func (v *Variant) appName(name string) string {
	if v.RenameTo != "" {
		return v.RenameTo
	}
	return name
}

// EnumSchema is an ordered set of variants. A variant's wire tag is its
// position among the variants that are not skipped.
type EnumSchema struct {
	Variants OrderedMap[Variant]

	// Closed enums refuse new variants when merging.
	Closed bool

	// NumericOnly enums have no associated data in any variant.
	NumericOnly bool

	// TypeFieldOnParent, when set, is the key on the enclosing object that
	// holds the variant name.
	TypeFieldOnParent string

	Foreign bool
}

// variantAt returns the variant with the given wire tag.
func (e *EnumSchema) variantAt(tag uint64) (string, *Variant, bool) {
	var n uint64
	for i := range e.Variants.Len() {
		name, v := e.Variants.At(i)
		if v.Skip {
			continue
		}
		if n == tag {
			return name, &v, true
		}
		n++
	}
	return "", nil, false
}

// variantTag finds a variant by its application name, or by its wire name
// for foreign variants.
func (e *EnumSchema) variantTag(name string, foreign bool) (uint64, *Variant, error) {
	var tag uint64
	for i := range e.Variants.Len() {
		vname, v := e.Variants.At(i)
		var match bool
		if foreign {
			match = v.Foreign && vname == name
		} else {
			match = !v.Foreign && v.appName(vname) == name
		}
		if v.Skip {
			if match {
				return 0, nil, newError(ErrUnknownVariant, fmt.Sprintf("variant %q is not known to the data's schema", name))
			}
			continue
		}
		if match {
			return tag, &v, nil
		}
		tag++
	}
	return 0, nil, newError(ErrUnknownVariant, fmt.Sprintf("%q", name))
}

// TypeKind tells which half of a TypeDef is set.
type TypeKind uint8

const (
	TypeStruct TypeKind = iota
	TypeEnum
)

func (k TypeKind) String() string {
	if k == TypeEnum {
		return "enum"
	}
	return "struct"
}

// TypeDef is a named entry in the type table: a struct or an enum.
type TypeDef struct {
	Kind   TypeKind
	Struct *StructSchema
	Enum   *EnumSchema
}

func StructDef(s *StructSchema) TypeDef { return TypeDef{Kind: TypeStruct, Struct: s} }
func EnumDef(e *EnumSchema) TypeDef     { return TypeDef{Kind: TypeEnum, Enum: e} }

// Foreign reports whether the type only exists in the data's schema.
func (t TypeDef) Foreign() bool {
	if t.Kind == TypeEnum {
		return t.Enum.Foreign
	}
	return t.Struct.Foreign
}

// Schema is a root type plus the named types it refers to. Schemas are not
// modified once built; they can be shared between goroutines.
type Schema struct {
	ID    string
	Root  SType
	Types OrderedMap[TypeDef]
}

func (s *Schema) resolve(name string) (TypeDef, error) {
	td, ok := s.Types.Get(name)
	if !ok {
		return TypeDef{}, newError(ErrMissingType, fmt.Sprintf("%q", name))
	}
	return td, nil
}

// parentTag returns the key an enum-typed field writes its variant name into
// on the enclosing object, or "".
func (s *Schema) parentTag(t SType) string {
	if t.Kind != KindRef {
		return ""
	}
	td, ok := s.Types.Get(t.Ref)
	if !ok || td.Kind != TypeEnum {
		return ""
	}
	return td.Enum.TypeFieldOnParent
}

// Validate checks that every reference resolves and that every struct and
// enum is well formed.
func (s *Schema) Validate() error {
	if err := s.validateType(s.Root); err != nil {
		return withPath(err, "root")
	}

	for name, td := range s.Types.All() {
		var err error
		switch td.Kind {
		case TypeStruct:
			if td.Struct == nil {
				err = newError(ErrInvalidSchema, "struct type has no definition")
				break
			}
			err = s.validateStruct(td.Struct)
		case TypeEnum:
			if td.Enum == nil {
				err = newError(ErrInvalidSchema, "enum type has no definition")
				break
			}
			err = s.validateEnum(td.Enum)
		default:
			err = newError(ErrInvalidSchema, fmt.Sprintf("unknown type kind %d", td.Kind))
		}
		if err != nil {
			return withPath(err, name)
		}
	}
	return s.checkEmptyCycles()
}

// checkEmptyCycles rejects a struct that contains itself through required
// fields of structs without a bitfield. Reading one takes no bytes, so it
// would never finish.
func (s *Schema) checkEmptyCycles() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, s.Types.Len())

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return withPath(newError(ErrInvalidSchema, "struct contains itself without taking any bytes"), name)
		case done:
			return nil
		}
		state[name] = visiting
		td, _ := s.Types.Get(name)
		if td.Kind == TypeStruct && !td.Struct.hasBitfield() {
			for _, f := range td.Struct.Fields.All() {
				if f.Skip || f.Type.Kind != KindRef {
					continue
				}
				if next, ok := s.Types.Get(f.Type.Ref); ok && next.Kind == TypeStruct {
					if err := visit(f.Type.Ref); err != nil {
						return err
					}
				}
			}
		}
		state[name] = done
		return nil
	}

	for name := range s.Types.All() {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateStruct(st *StructSchema) error {
	if n := st.bitfieldBits(); n > maxBitfieldBits {
		return newError(ErrInvalidSchema, fmt.Sprintf("%d optional and inline fields, at most %d fit", n, maxBitfieldBits))
	}
	for name, f := range st.Fields.All() {
		if err := s.validateType(f.Type); err != nil {
			return withPath(err, name)
		}
		if f.Inline && f.Type.Kind != KindBool {
			return withPath(newError(ErrInvalidSchema, "only bool fields can be inline"), name)
		}
	}
	return nil
}

func (s *Schema) validateEnum(en *EnumSchema) error {
	for name, v := range en.Variants.All() {
		if v.Data == nil {
			continue
		}
		if en.NumericOnly && v.Data.Fields.Len() > 0 {
			return withPath(newError(ErrInvalidSchema, "numeric only enum has a variant with fields"), name)
		}
		if err := s.validateStruct(v.Data); err != nil {
			return withPath(err, name)
		}
	}
	return nil
}

func (s *Schema) validateType(t SType) error {
	switch t.Kind {
	case KindRef:
		_, err := s.resolve(t.Ref)
		return err
	case KindList:
		if t.Elem == nil {
			return newError(ErrInvalidSchema, "list has no element type")
		}
		return s.validateType(*t.Elem)
	case KindMap:
		if t.Key == nil || t.Elem == nil {
			return newError(ErrInvalidSchema, "map needs a key and a value type")
		}
		if t.Key.Kind != KindString && t.Key.Kind != KindID {
			return newError(ErrInvalidSchema, "map keys must be string or id, not "+t.Key.String())
		}
		if t.MapForm > MapPairs {
			return newError(ErrInvalidSchema, "unknown map form "+t.MapForm.String())
		}
		return s.validateType(*t.Elem)
	}
	if !t.Kind.IsPrimitive() {
		return newError(ErrInvalidSchema, "unknown kind "+t.Kind.String())
	}
	return nil
}

// String renders the schema in the terse form Expand accepts, mostly for
// debugging.
func (s *Schema) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema %q root %s\n", s.ID, s.Root)
	for name, td := range s.Types.All() {
		switch td.Kind {
		case TypeStruct:
			fmt.Fprintf(&sb, "struct %s\n", name)
			writeFields(&sb, "  ", td.Struct)
		case TypeEnum:
			fmt.Fprintf(&sb, "enum %s\n", name)
			for vname, v := range td.Enum.Variants.All() {
				fmt.Fprintf(&sb, "  %s\n", vname)
				if v.Data != nil {
					writeFields(&sb, "    ", v.Data)
				}
			}
		}
	}
	return sb.String()
}

func writeFields(sb *strings.Builder, indent string, st *StructSchema) {
	for name, f := range st.Fields.All() {
		fmt.Fprintf(sb, "%s%s: %s", indent, name, f.Type)
		if f.Optional {
			sb.WriteString(" optional")
		}
		if f.Skip {
			sb.WriteString(" skip")
		}
		if f.Foreign {
			sb.WriteString(" foreign")
		}
		sb.WriteByte('\n')
	}
}
