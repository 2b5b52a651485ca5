package schemaboi

import (
	"fmt"
	"strings"
)

// Expand turns the terse application form of a schema into a full Schema,
// filling in everything the application left implicit:
//
//   - bool fields are stored inline in the bitfield
//   - fields with a default are optional, and primitive ones leave values
//     equal to their default off the wire
//   - 8 bit integers are fixed width, wider ones are varints
//   - enums whose variants carry no data are numeric only
//
// Defaults are converted to the Go types decoding produces.
func Expand(app *AppSchema) (*Schema, error) {
	s := &Schema{ID: app.ID}

	for _, at := range app.Types {
		if at.Name == "" {
			return nil, newError(ErrInvalidSchema, "type without a name")
		}
		if _, ok := ParsePrimitive(at.Name); ok {
			return nil, withPath(newError(ErrInvalidSchema, "type name shadows a primitive"), at.Name)
		}
		if s.Types.Has(at.Name) {
			return nil, withPath(newError(ErrInvalidSchema, "duplicate type"), at.Name)
		}

		if at.Enum || len(at.Variants) > 0 {
			en, err := expandEnum(&at)
			if err != nil {
				return nil, withPath(err, at.Name)
			}
			s.Types.Set(at.Name, EnumDef(en))
			continue
		}

		st, err := expandStruct(at.Fields)
		if err != nil {
			return nil, withPath(err, at.Name)
		}
		s.Types.Set(at.Name, StructDef(st))
	}

	if app.Root == "" {
		return nil, newError(ErrInvalidSchema, "no root type")
	}
	root, err := ParseType(app.Root)
	if err != nil {
		return nil, withPath(err, "root")
	}
	fillEncoding(&root, EncodingDefault)
	s.Root = root

	if err := s.Validate(); err != nil {
		return nil, err
	}

	for name, td := range s.Types.All() {
		var err error
		switch td.Kind {
		case TypeStruct:
			err = canonicalDefaults(s, td.Struct)
		case TypeEnum:
			for vname, v := range td.Enum.Variants.All() {
				if v.Data == nil {
					continue
				}
				if err = canonicalDefaults(s, v.Data); err != nil {
					err = withPath(err, vname)
					break
				}
			}
		}
		if err != nil {
			return nil, withPath(err, name)
		}
	}

	return s, nil
}

func expandStruct(fields []AppField) (*StructSchema, error) {
	st := &StructSchema{}
	for _, af := range fields {
		if af.Name == "" {
			return nil, newError(ErrInvalidSchema, "field without a name")
		}
		if st.Fields.Has(af.Name) {
			return nil, withPath(newError(ErrInvalidSchema, "duplicate field"), af.Name)
		}
		f, err := expandField(&af)
		if err != nil {
			return nil, withPath(err, af.Name)
		}
		st.Fields.Set(af.Name, f)
	}
	return st, nil
}

func expandField(af *AppField) (Field, error) {
	t, err := ParseType(af.Type)
	if err != nil {
		return Field{}, err
	}

	enc := EncodingDefault
	switch af.Encoding {
	case "":
	case "le", "fixed":
		enc = EncodingLE
	case "varint":
		enc = EncodingVarint
	default:
		return Field{}, newError(ErrInvalidSchema, fmt.Sprintf("unknown integer encoding %q", af.Encoding))
	}
	fillEncoding(&t, enc)

	if af.MapForm != "" {
		form, ok := parseMapForm(af.MapForm)
		if !ok {
			return Field{}, newError(ErrInvalidSchema, fmt.Sprintf("unknown map form %q", af.MapForm))
		}
		setMapForm(&t, form)
	}
	if af.BigInt {
		setBigInt(&t)
	}

	f := Field{
		Type:     t,
		Default:  af.Default,
		Skip:     af.Skip,
		RenameTo: af.RenameTo,
		Inline:   t.Kind == KindBool,
		Optional: af.Default != nil,
	}
	if af.Inline != nil {
		f.Inline = *af.Inline
	}
	if af.Optional != nil {
		f.Optional = *af.Optional
	}
	if f.Inline && t.Kind != KindBool {
		return Field{}, newError(ErrInvalidSchema, "only bool fields can be inline")
	}
	f.ElideDefault = f.Default != nil && f.Optional && cheapPrimitive(t.Kind)

	return f, nil
}

func cheapPrimitive(k Kind) bool {
	switch k {
	case KindBool, KindString, KindBinary, KindID:
		return true
	}
	return k.IsInt()
}

func expandEnum(at *AppType) (*EnumSchema, error) {
	en := &EnumSchema{
		Closed:            at.Closed,
		TypeFieldOnParent: at.TypeFieldOnParent,
		NumericOnly:       true,
	}

	for _, av := range at.Variants {
		if av.Name == "" {
			return nil, newError(ErrInvalidSchema, "variant without a name")
		}
		if en.Variants.Has(av.Name) {
			return nil, withPath(newError(ErrInvalidSchema, "duplicate variant"), av.Name)
		}
		v := Variant{RenameTo: av.RenameTo}
		if len(av.Fields) > 0 {
			d, err := expandStruct(av.Fields)
			if err != nil {
				return nil, withPath(err, av.Name)
			}
			v.Data = d
			en.NumericOnly = false
		}
		en.Variants.Set(av.Name, v)
	}

	if at.NumericOnly != nil {
		if *at.NumericOnly && !en.NumericOnly {
			return nil, newError(ErrInvalidSchema, "numeric only enum has a variant with fields")
		}
		en.NumericOnly = *at.NumericOnly
	}
	return en, nil
}

// canonicalDefaults replaces each default with the value decoding it would
// produce, so defaults look exactly like decoded data.
func canonicalDefaults(s *Schema, st *StructSchema) error {
	for i := range st.Fields.Len() {
		name, f := st.Fields.At(i)
		if f.Default == nil {
			continue
		}
		b, err := Encode(s, f.Type, f.Default)
		if err != nil {
			return withPath(err, name)
		}
		if f.Default, err = Decode(s, f.Type, b); err != nil {
			return withPath(err, name)
		}
		st.Fields.Set(name, f)
	}
	return nil
}

// fillEncoding sets the encoding of every integer in t that has none.
func fillEncoding(t *SType, enc IntEncoding) {
	switch {
	case t.Kind.IsInt():
		if enc == EncodingDefault {
			enc = t.intEncoding()
		}
		t.Encoding = enc
	case t.Kind == KindList:
		fillEncoding(t.Elem, enc)
	case t.Kind == KindMap:
		fillEncoding(t.Elem, enc)
	}
}

func setMapForm(t *SType, form MapForm) {
	switch t.Kind {
	case KindList:
		setMapForm(t.Elem, form)
	case KindMap:
		t.MapForm = form
		setMapForm(t.Elem, form)
	}
}

func setBigInt(t *SType) {
	switch {
	case t.Kind.IsInt():
		t.DecodeAsBigInt = true
	case t.Kind == KindList, t.Kind == KindMap:
		setBigInt(t.Elem)
	}
}

func parseMapForm(s string) (MapForm, bool) {
	for i, name := range mapFormNames {
		if name == s {
			return MapForm(i), true
		}
	}
	return 0, false
}

// ParseType parses a type expression: a primitive name, the name of a type
// in the schema, list<T>, map<V> (string keys) or map<K, V>.
func ParseType(expr string) (SType, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return SType{}, newError(ErrInvalidSchema, "empty type expression")
	}

	if inner, ok := generic(expr, "list"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return SType{}, err
		}
		return ListOf(elem), nil
	}

	if inner, ok := generic(expr, "map"); ok {
		args := splitArgs(inner)
		var key, val SType
		var err error
		switch len(args) {
		case 1:
			key = Primitive(KindString)
			val, err = ParseType(args[0])
		case 2:
			if key, err = ParseType(args[0]); err == nil {
				val, err = ParseType(args[1])
			}
		default:
			return SType{}, newError(ErrInvalidSchema, fmt.Sprintf("map takes one or two type arguments: %q", expr))
		}
		if err != nil {
			return SType{}, err
		}
		return MapOf(key, val, MapObject), nil
	}

	if strings.ContainsAny(expr, "<>, \t") {
		return SType{}, newError(ErrInvalidSchema, fmt.Sprintf("malformed type expression %q", expr))
	}
	if k, ok := ParsePrimitive(expr); ok {
		return Primitive(k), nil
	}
	return Ref(expr), nil
}

// generic matches name<...> and returns what is between the brackets.
func generic(expr, name string) (string, bool) {
	rest, ok := strings.CutPrefix(expr, name)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// splitArgs splits on commas that are not nested inside brackets.
func splitArgs(s string) []string {
	var args []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	return append(args, s[start:])
}
