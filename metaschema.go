package schemaboi

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Metaschema describes schemas. Documents store their schema encoded with
// it, and it can describe (and round trip) itself.
var Metaschema = buildMetaschema()

type fieldSpec struct {
	name string
	f    Field
}

func field(name string, t SType) fieldSpec { return fieldSpec{name, Field{Type: t}} }

func optionalField(name string, t SType) fieldSpec {
	return fieldSpec{name, Field{Type: t, Optional: true}}
}

func boolField(name string) fieldSpec {
	return fieldSpec{name, Field{Type: Primitive(KindBool), Inline: true}}
}

func structOf(specs ...fieldSpec) *StructSchema {
	s := &StructSchema{}
	for _, sp := range specs {
		s.Fields.Set(sp.name, sp.f)
	}
	return s
}

// enumOf builds an enum whose variants carry data. Pass nil data for variants
// that carry nothing.
func enumOf(names []string, data ...*StructSchema) *EnumSchema {
	e := &EnumSchema{NumericOnly: len(data) == 0}
	for i, name := range names {
		var v Variant
		if i < len(data) {
			v.Data = data[i]
		}
		e.Variants.Set(name, v)
	}
	return e
}

func buildMetaschema() *Schema {
	stype := Ref("SType")
	fieldMap := MapOf(Primitive(KindID), Ref("Field"), MapEntries)
	optString := func(name string) fieldSpec { return optionalField(name, Primitive(KindString)) }

	s := &Schema{ID: "_sbmeta", Root: Ref("Schema")}

	s.Types.Set("Schema", StructDef(structOf(
		field("id", Primitive(KindString)),
		field("root", stype),
		field("types", MapOf(Primitive(KindID), Ref("TypeDef"), MapEntries)),
	)))

	s.Types.Set("TypeDef", EnumDef(enumOf([]string{"Struct", "Enum"},
		structOf(
			field("fields", fieldMap),
			boolField("foreign"),
		),
		structOf(
			field("variants", MapOf(Primitive(KindID), Ref("EnumVariant"), MapEntries)),
			boolField("closed"),
			boolField("numericOnly"),
			optString("typeFieldOnParent"),
			boolField("foreign"),
		),
	)))

	s.Types.Set("StructSchema", StructDef(structOf(
		field("fields", fieldMap),
		boolField("foreign"),
	)))

	s.Types.Set("Field", StructDef(structOf(
		field("type", stype),
		optionalField("defaultValue", Primitive(KindBinary)),
		boolField("optional"),
		boolField("skip"),
		boolField("foreign"),
		optString("renameTo"),
		boolField("inline"),
		boolField("elideDefault"),
	)))

	s.Types.Set("EnumVariant", StructDef(structOf(
		optionalField("associatedData", Ref("StructSchema")),
		boolField("foreign"),
		boolField("skip"),
		optString("renameTo"),
	)))

	s.Types.Set("SType", EnumDef(enumOf([]string{"Primitive", "Ref", "List", "Map"},
		structOf(
			field("kind", Ref("Primitive")),
			optionalField("encoding", Ref("IntEncoding")),
			boolField("decodeAsBigInt"),
		),
		structOf(field("key", Primitive(KindID))),
		structOf(field("elem", stype)),
		structOf(
			field("key", stype),
			field("value", stype),
			field("form", Ref("MapForm")),
		),
	)))

	s.Types.Set("Primitive", EnumDef(enumOf(kindNames[:numPrimitives])))
	s.Types.Set("IntEncoding", EnumDef(enumOf([]string{EncodingLE.String(), EncodingVarint.String()})))
	s.Types.Set("MapForm", EnumDef(enumOf(mapFormNames[:])))

	return s
}

// EncodeSchema encodes s with the metaschema.
func EncodeSchema(s *Schema) ([]byte, error) {
	v, err := SchemaToValue(s)
	if err != nil {
		return nil, err
	}
	return Encode(Metaschema, Metaschema.Root, v)
}

// DecodeSchema reads a schema written by EncodeSchema.
func DecodeSchema(b []byte) (*Schema, error) {
	v, err := Decode(Metaschema, Metaschema.Root, b)
	if err != nil {
		return nil, err
	}
	return SchemaFromValue(v)
}

// decodeSchemaPrefix reads a schema from the start of b and reports how many
// bytes it used.
func decodeSchemaPrefix(b []byte) (*Schema, int, error) {
	ds := decodeState{schema: Metaschema}
	v, n, err := ds.decode(b, 0, Metaschema.Root, nil)
	if err != nil {
		return nil, 0, err
	}
	s, err := SchemaFromValue(v)
	if err != nil {
		return nil, 0, err
	}
	return s, n, nil
}

// Fingerprint hashes the encoded form of s. Equal schemas have equal
// fingerprints.
func (s *Schema) Fingerprint() (uint64, error) {
	b, err := EncodeSchema(s)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// SchemaToValue converts s into a value of the metaschema's root type.
// Field defaults are stored encoded with the field's own type.
func SchemaToValue(s *Schema) (map[string]any, error) {
	types := make([]MapEntry, 0, s.Types.Len())
	for name, td := range s.Types.All() {
		var v map[string]any
		switch td.Kind {
		case TypeStruct:
			fields, err := fieldsToValue(s, td.Struct)
			if err != nil {
				return nil, withPath(err, name)
			}
			v = map[string]any{TypeKey: "Struct", "fields": fields, "foreign": td.Struct.Foreign}

		case TypeEnum:
			e := td.Enum
			variants := make([]MapEntry, 0, e.Variants.Len())
			for vname, vr := range e.Variants.All() {
				vv := map[string]any{"foreign": vr.Foreign, "skip": vr.Skip}
				if vr.RenameTo != "" {
					vv["renameTo"] = vr.RenameTo
				}
				if vr.Data != nil {
					fields, err := fieldsToValue(s, vr.Data)
					if err != nil {
						return nil, withPath(withPath(err, vname), name)
					}
					vv["associatedData"] = map[string]any{"fields": fields, "foreign": vr.Data.Foreign}
				}
				variants = append(variants, MapEntry{Key: vname, Value: vv})
			}
			v = map[string]any{
				TypeKey:       "Enum",
				"variants":    variants,
				"closed":      e.Closed,
				"numericOnly": e.NumericOnly,
				"foreign":     e.Foreign,
			}
			if e.TypeFieldOnParent != "" {
				v["typeFieldOnParent"] = e.TypeFieldOnParent
			}
		}
		types = append(types, MapEntry{Key: name, Value: v})
	}

	return map[string]any{
		"id":    s.ID,
		"root":  stypeToValue(s.Root),
		"types": types,
	}, nil
}

func fieldsToValue(s *Schema, st *StructSchema) ([]MapEntry, error) {
	fields := make([]MapEntry, 0, st.Fields.Len())
	for name, f := range st.Fields.All() {
		fv := map[string]any{
			"type":         stypeToValue(f.Type),
			"optional":     f.Optional,
			"skip":         f.Skip,
			"foreign":      f.Foreign,
			"inline":       f.Inline,
			"elideDefault": f.ElideDefault,
		}
		if f.RenameTo != "" {
			fv["renameTo"] = f.RenameTo
		}
		if f.Default != nil {
			b, err := Encode(s, f.Type, f.Default)
			if err != nil {
				return nil, withPath(err, name)
			}
			fv["defaultValue"] = b
		}
		fields = append(fields, MapEntry{Key: name, Value: fv})
	}
	return fields, nil
}

func stypeToValue(t SType) map[string]any {
	switch t.Kind {
	case KindRef:
		return map[string]any{TypeKey: "Ref", "key": t.Ref}
	case KindList:
		return map[string]any{TypeKey: "List", "elem": stypeToValue(*t.Elem)}
	case KindMap:
		return map[string]any{
			TypeKey: "Map",
			"key":   stypeToValue(*t.Key),
			"value": stypeToValue(*t.Elem),
			"form":  t.MapForm.String(),
		}
	}

	v := map[string]any{TypeKey: "Primitive", "kind": t.Kind.String(), "decodeAsBigInt": t.DecodeAsBigInt}
	if t.Kind.IsInt() && t.Encoding != EncodingDefault {
		v["encoding"] = t.Encoding.String()
	}
	return v
}

func schemaError(format string, args ...any) error {
	return newError(ErrInvalidSchema, fmt.Sprintf(format, args...))
}

func getObject(obj map[string]any, key string) (map[string]any, error) {
	o, ok := obj[key].(map[string]any)
	if !ok {
		return nil, withPath(schemaError("expected object, got %T", obj[key]), key)
	}
	return o, nil
}

func getString(obj map[string]any, key string, optional bool) (string, error) {
	v := obj[key]
	if v == nil && optional {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", withPath(schemaError("expected string, got %T", v), key)
	}
	return s, nil
}

func getBool(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

func getEntries(obj map[string]any, key string) ([]MapEntry, error) {
	switch e := obj[key].(type) {
	case []MapEntry:
		return e, nil
	case nil:
		return nil, nil
	}
	return nil, withPath(schemaError("expected map entries, got %T", obj[key]), key)
}

// pendingDefault is a field default that can only be decoded once every type
// in the schema is known.
type pendingDefault struct {
	st   *StructSchema
	name string
	raw  []byte
}

// SchemaFromValue is the inverse of SchemaToValue.
func SchemaFromValue(v any) (*Schema, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, schemaError("expected schema object, got %T", v)
	}

	id, err := getString(obj, "id", false)
	if err != nil {
		return nil, err
	}
	rootv, err := getObject(obj, "root")
	if err != nil {
		return nil, err
	}
	root, err := stypeFromValue(rootv)
	if err != nil {
		return nil, withPath(err, "root")
	}

	s := &Schema{ID: id, Root: root}
	var pending []pendingDefault

	types, err := getEntries(obj, "types")
	if err != nil {
		return nil, err
	}
	for _, e := range types {
		name, _ := e.Key.(string)
		tv, ok := e.Value.(map[string]any)
		if !ok {
			return nil, withPath(schemaError("expected type definition, got %T", e.Value), name)
		}

		switch tv[TypeKey] {
		case "Struct":
			st, err := structFromValue(tv, &pending)
			if err != nil {
				return nil, withPath(err, name)
			}
			s.Types.Set(name, StructDef(st))

		case "Enum":
			en, err := enumFromValue(tv, &pending)
			if err != nil {
				return nil, withPath(err, name)
			}
			s.Types.Set(name, EnumDef(en))

		default:
			return nil, withPath(schemaError("unknown type definition %v", tv[TypeKey]), name)
		}
	}

	for _, p := range pending {
		f, _ := p.st.Fields.Get(p.name)
		if f.Default, err = Decode(s, f.Type, p.raw); err != nil {
			return nil, withPath(err, p.name)
		}
		p.st.Fields.Set(p.name, f)
	}

	return s, nil
}

func structFromValue(obj map[string]any, pending *[]pendingDefault) (*StructSchema, error) {
	st := &StructSchema{Foreign: getBool(obj, "foreign")}

	fields, err := getEntries(obj, "fields")
	if err != nil {
		return nil, err
	}
	for _, e := range fields {
		name, _ := e.Key.(string)
		fv, ok := e.Value.(map[string]any)
		if !ok {
			return nil, withPath(schemaError("expected field, got %T", e.Value), name)
		}

		tv, err := getObject(fv, "type")
		if err != nil {
			return nil, withPath(err, name)
		}
		t, err := stypeFromValue(tv)
		if err != nil {
			return nil, withPath(err, name)
		}
		rename, err := getString(fv, "renameTo", true)
		if err != nil {
			return nil, withPath(err, name)
		}

		st.Fields.Set(name, Field{
			Type:         t,
			Optional:     getBool(fv, "optional"),
			Skip:         getBool(fv, "skip"),
			Foreign:      getBool(fv, "foreign"),
			RenameTo:     rename,
			Inline:       getBool(fv, "inline"),
			ElideDefault: getBool(fv, "elideDefault"),
		})

		if raw, ok := fv["defaultValue"].([]byte); ok {
			*pending = append(*pending, pendingDefault{st: st, name: name, raw: raw})
		}
	}
	return st, nil
}

func enumFromValue(obj map[string]any, pending *[]pendingDefault) (*EnumSchema, error) {
	tfop, err := getString(obj, "typeFieldOnParent", true)
	if err != nil {
		return nil, err
	}
	en := &EnumSchema{
		Closed:            getBool(obj, "closed"),
		NumericOnly:       getBool(obj, "numericOnly"),
		TypeFieldOnParent: tfop,
		Foreign:           getBool(obj, "foreign"),
	}

	variants, err := getEntries(obj, "variants")
	if err != nil {
		return nil, err
	}
	for _, e := range variants {
		name, _ := e.Key.(string)
		vv, ok := e.Value.(map[string]any)
		if !ok {
			return nil, withPath(schemaError("expected variant, got %T", e.Value), name)
		}
		rename, err := getString(vv, "renameTo", true)
		if err != nil {
			return nil, withPath(err, name)
		}

		v := Variant{
			Foreign:  getBool(vv, "foreign"),
			Skip:     getBool(vv, "skip"),
			RenameTo: rename,
		}
		if dv, ok := vv["associatedData"].(map[string]any); ok {
			if v.Data, err = structFromValue(dv, pending); err != nil {
				return nil, withPath(err, name)
			}
		}
		en.Variants.Set(name, v)
	}
	return en, nil
}

func stypeFromValue(obj map[string]any) (SType, error) {
	switch obj[TypeKey] {
	case "Primitive":
		name, err := getString(obj, "kind", false)
		if err != nil {
			return SType{}, err
		}
		k, ok := ParsePrimitive(name)
		if !ok {
			return SType{}, schemaError("unknown primitive %q", name)
		}
		t := SType{Kind: k, DecodeAsBigInt: getBool(obj, "decodeAsBigInt")}
		switch obj["encoding"] {
		case nil:
		case EncodingLE.String():
			t.Encoding = EncodingLE
		case EncodingVarint.String():
			t.Encoding = EncodingVarint
		default:
			return SType{}, schemaError("unknown integer encoding %v", obj["encoding"])
		}
		return t, nil

	case "Ref":
		key, err := getString(obj, "key", false)
		if err != nil {
			return SType{}, err
		}
		return Ref(key), nil

	case "List":
		ev, err := getObject(obj, "elem")
		if err != nil {
			return SType{}, err
		}
		elem, err := stypeFromValue(ev)
		if err != nil {
			return SType{}, withPath(err, "elem")
		}
		return ListOf(elem), nil

	case "Map":
		kv, err := getObject(obj, "key")
		if err != nil {
			return SType{}, err
		}
		vv, err := getObject(obj, "value")
		if err != nil {
			return SType{}, err
		}
		key, err := stypeFromValue(kv)
		if err != nil {
			return SType{}, withPath(err, "key")
		}
		val, err := stypeFromValue(vv)
		if err != nil {
			return SType{}, withPath(err, "value")
		}
		var form MapForm
		switch obj["form"] {
		case MapObject.String():
			form = MapObject
		case MapEntries.String():
			form = MapEntries
		case MapPairs.String():
			form = MapPairs
		default:
			return SType{}, schemaError("unknown map form %v", obj["form"])
		}
		return MapOf(key, val, form), nil
	}

	return SType{}, schemaError("unknown type expression %v", obj[TypeKey])
}
