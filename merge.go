package schemaboi

import (
	"fmt"
	"log/slog"
	"sync"
)

// A Merger combines the schema some data was written with (remote) and the
// schema the application expects (local). The result reads the remote data
// and presents it the way the local schema describes.
//
// Wire attributes (field order, types, optionality) come from the remote
// schema. Application attributes (renames, defaults, decode hints) come from
// the local one. Fields and variants only the remote knows become foreign and
// are carried through; ones only the local knows are skipped.
type Merger struct {
	// Logger receives warnings about merges that succeed but look suspect.
	// Nil discards them.
	Logger *slog.Logger
}

// Merge merges remote and local with a default Merger.
func Merge(remote, local *Schema) (*Schema, error) {
	var m Merger
	return m.Merge(remote, local)
}

// Merge returns a new schema. Neither input is modified.
func (m *Merger) Merge(remote, local *Schema) (*Schema, error) {
	if remote.ID != local.ID {
		return nil, newError(ErrIncompatibleSchema, fmt.Sprintf("schema ids differ: %q in data, %q in application", remote.ID, local.ID))
	}
	if !sameShape(remote.Root, local.Root) {
		return nil, withPath(newError(ErrIncompatibleSchema, fmt.Sprintf("%s in data, %s in application", remote.Root, local.Root)), "root")
	}

	out := &Schema{ID: local.ID, Root: mergeType(remote.Root, local.Root)}

	for name, rt := range remote.Types.All() {
		lt, ok := local.Types.Get(name)
		if !ok {
			out.Types.Set(name, foreignDef(rt))
			continue
		}
		if rt.Kind != lt.Kind {
			return nil, withPath(newError(ErrIncompatibleSchema, fmt.Sprintf("%s in data, %s in application", rt.Kind, lt.Kind)), name)
		}

		switch rt.Kind {
		case TypeStruct:
			s, err := m.mergeStruct(rt.Struct, lt.Struct)
			if err != nil {
				return nil, withPath(err, name)
			}
			out.Types.Set(name, StructDef(s))
		case TypeEnum:
			e, err := m.mergeEnum(name, rt.Enum, lt.Enum)
			if err != nil {
				return nil, withPath(err, name)
			}
			out.Types.Set(name, EnumDef(e))
		}
	}

	for name, lt := range local.Types.All() {
		if !remote.Types.Has(name) {
			out.Types.Set(name, lt)
		}
	}

	return out, nil
}

func foreignDef(td TypeDef) TypeDef {
	switch td.Kind {
	case TypeEnum:
		e := *td.Enum
		e.Foreign = true
		return EnumDef(&e)
	default:
		s := *td.Struct
		s.Foreign = true
		return StructDef(&s)
	}
}

// mergeType takes the wire shape of r and the decode hints of l. The two must
// have the same shape.
func mergeType(r, l SType) SType {
	out := r
	switch r.Kind {
	case KindList:
		e := mergeType(*r.Elem, *l.Elem)
		out.Elem = &e
	case KindMap:
		k := mergeType(*r.Key, *l.Key)
		e := mergeType(*r.Elem, *l.Elem)
		out.Key, out.Elem = &k, &e
		out.MapForm = l.MapForm
	}
	if r.Kind.IsInt() {
		out.DecodeAsBigInt = l.DecodeAsBigInt
	}
	return out
}

func (m *Merger) mergeStruct(remote, local *StructSchema) (*StructSchema, error) {
	out := &StructSchema{}

	for name, rf := range remote.Fields.All() {
		lf, ok := local.Fields.Get(name)
		if !ok {
			// Still on the wire unless the remote schema itself skips it.
			rf.Foreign = true
			out.Fields.Set(name, rf)
			continue
		}

		if !sameShape(rf.Type, lf.Type) {
			return nil, withPath(newError(ErrIncompatibleFieldType, fmt.Sprintf("%s in data, %s in application", rf.Type, lf.Type)), name)
		}

		out.Fields.Set(name, Field{
			Type:         mergeType(rf.Type, lf.Type),
			Optional:     rf.Optional,
			Inline:       rf.Inline,
			Skip:         rf.Skip,
			RenameTo:     lf.RenameTo,
			Default:      lf.Default,
			ElideDefault: lf.ElideDefault,
		})
	}

	for name, lf := range local.Fields.All() {
		if remote.Fields.Has(name) {
			continue
		}
		lf.Skip = true
		lf.Foreign = false
		out.Fields.Set(name, lf)
	}

	return out, nil
}

func (m *Merger) mergeEnum(name string, remote, local *EnumSchema) (*EnumSchema, error) {
	out := &EnumSchema{
		Closed:            remote.Closed || local.Closed,
		NumericOnly:       remote.NumericOnly && local.NumericOnly,
		TypeFieldOnParent: local.TypeFieldOnParent,
	}

	if local.NumericOnly && !remote.NumericOnly && m.Logger != nil {
		m.Logger.Warn("schemaboi: enum carries data in the stored schema but not in the application schema",
			slog.String("enum", name))
	}

	for vname, rv := range remote.Variants.All() {
		lv, ok := local.Variants.Get(vname)
		if !ok {
			if local.Closed {
				return nil, withPath(newError(ErrIncompatibleSchema, "cannot add variant to closed enum"), vname)
			}
			rv.Foreign = true
			out.Variants.Set(vname, rv)
			continue
		}

		v := Variant{Skip: rv.Skip, RenameTo: lv.RenameTo}
		if rv.Data != nil || lv.Data != nil {
			// A side without data reads as an empty struct, so the other
			// side's fields come out foreign or skipped.
			rd, ld := rv.Data, lv.Data
			if rd == nil {
				rd = &StructSchema{}
			}
			if ld == nil {
				ld = &StructSchema{}
			}
			d, err := m.mergeStruct(rd, ld)
			if err != nil {
				return nil, withPath(err, vname)
			}
			v.Data = d
		}
		out.Variants.Set(vname, v)
	}

	for vname, lv := range local.Variants.All() {
		if remote.Variants.Has(vname) {
			continue
		}
		if remote.Closed {
			return nil, withPath(newError(ErrIncompatibleSchema, "cannot add variant to closed enum"), vname)
		}
		lv.Skip = true
		lv.Foreign = false
		out.Variants.Set(vname, lv)
	}

	return out, nil
}

// MergeCache remembers merged schemas, keyed by the fingerprints of both
// inputs. It is safe for concurrent use. The zero value is ready to use.
type MergeCache struct {
	Merger Merger

	mu     sync.Mutex
	merged map[[2]uint64]*Schema
}

func (c *MergeCache) Merge(remote, local *Schema) (*Schema, error) {
	rf, err := remote.Fingerprint()
	if err != nil {
		return nil, err
	}
	lf, err := local.Fingerprint()
	if err != nil {
		return nil, err
	}
	key := [2]uint64{rf, lf}

	c.mu.Lock()
	s, ok := c.merged[key]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err = c.Merger.Merge(remote, local)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.merged == nil {
		c.merged = make(map[[2]uint64]*Schema)
	}
	c.merged[key] = s
	c.mu.Unlock()
	return s, nil
}

// Len returns the number of cached merges.
func (c *MergeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.merged)
}
