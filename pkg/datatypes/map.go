package datatypes

import "strings"

// MapEntry is a single key/value pair inside a Map.
type MapEntry struct {
	Key   string
	Value Value
}

// Map is an ordered string-keyed mapping. Entries keep their insertion
// order, which makes iteration stable across encode/decode round trips.
// Lookup is linear; maps on graph entities are small by construction.
type Map struct {
	entries []MapEntry
}

// NewMapFromPairs builds a map from the given key/value entries, in order.
func NewMapFromPairs(pairs ...MapEntry) *Map {
	m := &Map{entries: make([]MapEntry, 0, len(pairs))}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Set adds key with the given value, replacing any existing entry in place.
func (m *Map) Set(key string, v Value) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = v
			return
		}
	}
	m.entries = append(m.entries, MapEntry{Key: key, Value: v})
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			return m.entries[i].Value, true
		}
	}
	return NewNull(), false
}

// Remove deletes key from the map, preserving the order of the remaining
// entries. Returns whether the key was present.
func (m *Map) Remove(key string) bool {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// EntryAt returns the i'th entry in insertion order.
func (m *Map) EntryAt(i int) MapEntry { return m.entries[i] }

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	c := &Map{entries: make([]MapEntry, len(m.entries))}
	for i, e := range m.entries {
		c.entries[i] = MapEntry{Key: e.Key, Value: e.Value.Clone()}
	}
	return c
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.Key)
		sb.WriteString(": ")
		sb.WriteString(e.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
