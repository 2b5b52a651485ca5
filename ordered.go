package schemaboi

import "iter"

// OrderedMap is a string keyed map that remembers insertion order. Struct
// fields, enum variants and the type table all use it, because their order is
// part of the wire format.
//
// The zero value is an empty map ready to use.
type OrderedMap[V any] struct {
	keys  []string
	vals  []V
	index map[string]int
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (m *OrderedMap[V]) Set(key string, v V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = v
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, v)
}

func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// Index returns the position of key, or -1.
func (m *OrderedMap[V]) Index(key string) int {
	if i, ok := m.index[key]; ok {
		return i
	}
	return -1
}

func (m *OrderedMap[V]) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

func (m *OrderedMap[V]) Len() int { return len(m.keys) }

// At returns the i'th entry.
func (m *OrderedMap[V]) At(i int) (string, V) { return m.keys[i], m.vals[i] }

// Keys returns the keys in order. The slice must not be modified.
func (m *OrderedMap[V]) Keys() []string { return m.keys }

// All iterates over the entries in order.
func (m *OrderedMap[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for i, k := range m.keys {
			if !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy that can be modified without touching m.
func (m *OrderedMap[V]) Clone() OrderedMap[V] {
	var c OrderedMap[V]
	for i, k := range m.keys {
		c.Set(k, m.vals[i])
	}
	return c
}
