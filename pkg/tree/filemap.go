package tree

import (
	"encoding/json"
	"sort"
)

// FileMap is a case-insensitive mapping from relative path to FileRecord,
// used as the inner map of a TreeMap (spec.md 3: "keys case-insensitive;
// insertion order irrelevant"). The zero value is ready to use.
type FileMap struct {
	entries map[string]FileRecord
}

// NewFileMap creates an empty FileMap.
func NewFileMap() *FileMap {
	return &FileMap{entries: make(map[string]FileRecord)}
}

// Set inserts or overwrites the record for its own RelativePath.
func (m *FileMap) Set(record FileRecord) {
	if m.entries == nil {
		m.entries = make(map[string]FileRecord)
	}
	m.entries[normalizeKey(record.RelativePath)] = record
}

// Get looks up a record by relative path, case-insensitively.
func (m *FileMap) Get(relativePath string) (FileRecord, bool) {
	if m == nil {
		return FileRecord{}, false
	}
	record, ok := m.entries[normalizeKey(relativePath)]
	return record, ok
}

// Delete removes the record at the given relative path, if any.
func (m *FileMap) Delete(relativePath string) {
	if m == nil {
		return
	}
	delete(m.entries, normalizeKey(relativePath))
}

// Len returns the number of entries in the map.
func (m *FileMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the normalized (lowercase, forward-slash) keys in sorted
// order, giving callers a stable iteration order even though spec.md says
// insertion order is irrelevant.
func (m *FileMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns all records in the map, ordered by normalized key.
func (m *FileMap) Records() []FileRecord {
	keys := m.Keys()
	records := make([]FileRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, m.entries[k])
	}
	return records
}

// Range calls f for every entry, in sorted key order, stopping early if f
// returns false.
func (m *FileMap) Range(f func(record FileRecord) bool) {
	for _, record := range m.Records() {
		if !f(record) {
			return
		}
	}
}

// MarshalJSON implements json.Marshaler. FileMap's entries field is
// unexported (Set/Get/Delete normalize the key on every access), so the
// map must be marshaled explicitly rather than relying on struct
// reflection, which would otherwise serialize every FileMap as "{}".
func (m *FileMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return json.Marshal(map[string]FileRecord{})
	}
	return json.Marshal(m.entries)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *FileMap) UnmarshalJSON(data []byte) error {
	var entries map[string]FileRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]FileRecord)
	}
	m.entries = entries
	return nil
}

// TreeMap maps a sync path's key to its FileMap, per spec.md 3. Three
// instances exist at diff time: local, remote, previousRemote.
type TreeMap map[string]*FileMap

// NewTreeMap creates an empty TreeMap.
func NewTreeMap() TreeMap {
	return make(TreeMap)
}

// Ensure returns the FileMap for the given sync path key, creating it if
// necessary.
func (t TreeMap) Ensure(syncPathKey string) *FileMap {
	key := normalizeKey(syncPathKey)
	m, ok := t[key]
	if !ok {
		m = NewFileMap()
		t[key] = m
	}
	return m
}

// Get returns the FileMap for the given sync path key, or nil if absent.
func (t TreeMap) Get(syncPathKey string) *FileMap {
	return t[normalizeKey(syncPathKey)]
}
