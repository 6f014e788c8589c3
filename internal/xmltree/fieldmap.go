package xmltree

// FieldMap is an insertion-ordered map of tag name to text where the first
// value added for a name is kept and later ones are ignored.
type FieldMap struct {
	keys   []string
	values map[string]string
}

// NewFieldMap returns an empty FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]string)}
}

// Add stores value under name unless name is already present.
// It reports whether the value was stored.
func (m *FieldMap) Add(name, value string) bool {
	if _, exists := m.values[name]; exists {
		return false
	}
	m.keys = append(m.keys, name)
	m.values[name] = value
	return true
}

// Get returns the value for name and whether it was present.
func (m *FieldMap) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	value, ok := m.values[name]
	return value, ok
}

// Value returns the value for name, or "" when absent.
func (m *FieldMap) Value(name string) string {
	value, _ := m.Get(name)
	return value
}

// First returns the value of the first alias present in the map.
// Aliases are tried in the order given.
func (m *FieldMap) First(aliases ...string) string {
	for _, name := range aliases {
		if value, ok := m.Get(name); ok {
			return value
		}
	}
	return ""
}

// Keys returns the names in first-seen order.
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of distinct names.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}
