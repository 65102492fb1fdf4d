package pkg

import (
	"cmp"
	"slices"
)

type Map[K comparable, V any] map[K]V

func (m Map[K, V]) Get(key K) V {
	return m[key]
}

func (m Map[K, V]) Set(key K, value V) {
	m[key] = value
}

func (m Map[K, V]) Has(key K) bool {
	_, ok := m[key]
	return ok
}

func (m Map[K, V]) Keys() []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func SortedKeys[K cmp.Ordered, V any](m Map[K, V]) []K {
	keys := m.Keys()
	slices.Sort(keys)
	return keys
}

// InsertSortMap is a Map that remembers the order keys were first pushed in.
type InsertSortMap[K comparable, V any] struct {
	Idx    Map[K, V]
	Sorted []K
}

func NewInsertSortMap[K comparable, V any]() *InsertSortMap[K, V] {
	return &InsertSortMap[K, V]{Idx: Map[K, V]{}, Sorted: []K{}}
}

func (m *InsertSortMap[K, V]) Len() int { return len(m.Sorted) }

func (m *InsertSortMap[K, V]) Get(key K) V { return m.Idx.Get(key) }

func (m *InsertSortMap[K, V]) Has(key K) bool { return m.Idx.Has(key) }

// Keys returns a copy of the keys in insertion order.
func (m *InsertSortMap[K, V]) Keys() []K { return slices.Clone(m.Sorted) }

// Push adds key at the end. It reports false, changing nothing, when key is
// already present.
func (m *InsertSortMap[K, V]) Push(key K, value V) bool {
	if m.Idx.Has(key) {
		return false
	}
	m.Idx.Set(key, value)
	m.Sorted = append(m.Sorted, key)
	return true
}
