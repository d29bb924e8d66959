package tree

// OrderedMap is an insertion-ordered string-keyed map of *Node, the backing
// store for Kind==KindMapping. XML child-element order matters (the codec
// must round-trip it), so a plain Go map will not do.
type OrderedMap struct {
	keys   []string
	values map[string]*Node
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]*Node)}
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (*Node, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set assigns key to v, appending key to the iteration order on first
// insertion and leaving the order unchanged on update.
func (m *OrderedMap) Set(key string, v *Node) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key, preserving the relative order of the remaining keys.
func (m *OrderedMap) Delete(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// DeepCopy returns an independent copy preserving key order.
func (m *OrderedMap) DeepCopy() *OrderedMap {
	out := NewOrderedMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k].DeepCopy())
	}
	return out
}

func (m *OrderedMap) asGenericMap() map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	for _, k := range m.keys {
		out[k] = m.values[k].AsGo()
	}
	return out
}

// fromGenericMap converts a plain Go value tree (as produced by mergo
// operating on asGenericMap's output) back into a Node. The key order of
// every rebuilt mapping is Go's randomized map order; MergeInto then
// restores the destination's recorded order for pre-existing keys.
func fromGenericMap(v map[string]interface{}) (*Node, error) {
	return fromGo(v), nil
}

func fromGo(v interface{}) *Node {
	switch x := v.(type) {
	case nil:
		return NewNull()
	case string:
		return NewString(x)
	case float64:
		return NewNumber(x)
	case int:
		return NewNumber(float64(x))
	case bool:
		return NewBool(x)
	case []interface{}:
		items := make([]*Node, len(x))
		for i, e := range x {
			items[i] = fromGo(e)
		}
		return NewList(items...)
	case map[string]interface{}:
		n := NewMapping()
		for k, e := range x {
			n.Set(k, fromGo(e))
		}
		return n
	default:
		return NewNull()
	}
}
