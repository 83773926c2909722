// Package orderedmap provides an associative list that keeps its keys in a
// caller-controlled relative order. Mod lists and plugin lists rely on it for
// both display order and deployment precedence.
package orderedmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is a single key/value pair of a Map
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an ordered sequence of unique-keyed entries.
// The zero value is an empty map ready to use.
type Map[K comparable, V any] struct {
	entries []Entry[K, V]
	index   map[K]int
}

// New creates a map populated with the given entries in order.
// Later duplicates of a key update the earlier entry in place.
func New[K comparable, V any](entries ...Entry[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Len returns the number of entries
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the value stored for key
func (m *Map[K, V]) Get(key K) (V, bool) {
	idx := m.IndexOf(key)
	if idx < 0 {
		var zero V
		return zero, false
	}
	return m.entries[idx].Value, true
}

// Has reports whether key is present
func (m *Map[K, V]) Has(key K) bool {
	return m.IndexOf(key) >= 0
}

// IndexOf returns the position of key, or -1 when absent
func (m *Map[K, V]) IndexOf(key K) int {
	if m == nil || m.index == nil {
		return -1
	}
	idx, ok := m.index[key]
	if !ok {
		return -1
	}
	return idx
}

// At returns the entry at position idx
func (m *Map[K, V]) At(idx int) (Entry[K, V], bool) {
	if m == nil || idx < 0 || idx >= len(m.entries) {
		return Entry[K, V]{}, false
	}
	return m.entries[idx], true
}

// Next returns the entry following key
func (m *Map[K, V]) Next(key K) (Entry[K, V], bool) {
	idx := m.IndexOf(key)
	if idx < 0 {
		return Entry[K, V]{}, false
	}
	return m.At(idx + 1)
}

// Previous returns the entry preceding key
func (m *Map[K, V]) Previous(key K) (Entry[K, V], bool) {
	idx := m.IndexOf(key)
	if idx < 0 {
		return Entry[K, V]{}, false
	}
	return m.At(idx - 1)
}

// Set updates the value of an existing key in place, or appends a new entry.
func (m *Map[K, V]) Set(key K, value V) {
	if idx := m.IndexOf(key); idx >= 0 {
		m.entries[idx].Value = value
		return
	}
	if m.index == nil {
		m.index = make(map[K]int)
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry[K, V]{Key: key, Value: value})
}

// InsertAt removes any existing entry for key and splices it in at idx.
// An out-of-range idx appends.
func (m *Map[K, V]) InsertAt(key K, value V, idx int) {
	m.Delete(key)
	if idx < 0 || idx > len(m.entries) {
		idx = len(m.entries)
	}
	m.entries = append(m.entries, Entry[K, V]{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = Entry[K, V]{Key: key, Value: value}
	m.reindex(idx)
}

// InsertBefore removes any existing entry for key and places it directly
// before ref. When ref is absent the entry is appended.
func (m *Map[K, V]) InsertBefore(key K, value V, ref K) {
	m.Delete(key)
	idx := m.IndexOf(ref)
	if idx < 0 {
		idx = m.Len()
	}
	m.InsertAt(key, value, idx)
}

// InsertAfter removes any existing entry for key and places it directly
// after ref. When ref is absent the entry is appended.
func (m *Map[K, V]) InsertAfter(key K, value V, ref K) {
	m.Delete(key)
	idx := m.IndexOf(ref)
	if idx < 0 {
		idx = m.Len()
	} else {
		idx++
	}
	m.InsertAt(key, value, idx)
}

// Move relocates an existing key to position idx (clamped to the list bounds).
// Returns false when key is absent.
func (m *Map[K, V]) Move(key K, idx int) bool {
	value, ok := m.Get(key)
	if !ok {
		return false
	}
	m.Delete(key)
	if idx < 0 {
		idx = 0
	}
	m.InsertAt(key, value, idx)
	return true
}

// Delete removes key, reporting whether it was present
func (m *Map[K, V]) Delete(key K) bool {
	idx := m.IndexOf(key)
	if idx < 0 {
		return false
	}
	delete(m.index, key)
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	m.reindex(idx)
	return true
}

// Keys returns the keys in order
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		keys = append(keys, m.entries[i].Key)
	}
	return keys
}

// Values returns the values in order
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		values = append(values, m.entries[i].Value)
	}
	return values
}

// Entries returns a copy of the entries in order
func (m *Map[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], m.Len())
	if m != nil {
		copy(out, m.entries)
	}
	return out
}

// Clone returns a shallow copy of the map
func (m *Map[K, V]) Clone() *Map[K, V] {
	return New(m.Entries()...)
}

// reindex refreshes index positions from position start onwards
func (m *Map[K, V]) reindex(start int) {
	if m.index == nil {
		m.index = make(map[K]int, len(m.entries))
	}
	for i := start; i < len(m.entries); i++ {
		m.index[m.entries[i].Key] = i
	}
}

// MarshalJSON encodes the map as an array of [key, value] pairs so that
// order survives a round trip.
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	pairs := make([][2]any, 0, m.Len())
	for _, e := range m.Entries() {
		pairs = append(pairs, [2]any{e.Key, e.Value})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes an array of [key, value] pairs. Duplicate keys are rejected.
func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding ordered map: %w", err)
	}

	m.entries = nil
	m.index = nil
	for i, item := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil {
			return fmt.Errorf("decoding entry %d: %w", i, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("entry %d: expected [key, value] pair, got %d elements", i, len(pair))
		}

		var key K
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return fmt.Errorf("decoding key of entry %d: %w", i, err)
		}
		var value V
		if !bytes.Equal(bytes.TrimSpace(pair[1]), []byte("null")) {
			if err := json.Unmarshal(pair[1], &value); err != nil {
				return fmt.Errorf("decoding value of entry %d: %w", i, err)
			}
		}
		if m.Has(key) {
			return fmt.Errorf("entry %d: duplicate key %v", i, key)
		}
		m.Set(key, value)
	}
	return nil
}
