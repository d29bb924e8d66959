// Package tree defines the universal document representation shared by the
// codec, resolver and client packages: an ordered, attribute-aware value
// tree capable of representing any NETCONF XML document without a fixed Go
// struct shape.
package tree

import (
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
)

// Kind discriminates the value held by a Node.
type Kind int

// The kinds of value a Node can hold.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMapping
	KindList
)

// Reserved mapping keys recognised by the codec.
const (
	AttrsKey = "$"
	TextKey  = "_"
)

// Node is a tagged union: exactly one of the fields matching Kind is
// meaningful. A fresh Node is owned by its producer until handed to a
// caller; nothing here retains a reference after that point.
type Node struct {
	Kind Kind

	Str  string
	Num  float64
	Bool bool

	Map  *OrderedMap
	List []*Node
}

// NewString returns a primitive string Node.
func NewString(s string) *Node { return &Node{Kind: KindString, Str: s} }

// NewNumber returns a primitive numeric Node.
func NewNumber(n float64) *Node { return &Node{Kind: KindNumber, Num: n} }

// NewBool returns a primitive boolean Node.
func NewBool(b bool) *Node { return &Node{Kind: KindBool, Bool: b} }

// NewNull returns the null primitive Node.
func NewNull() *Node { return &Node{Kind: KindNull} }

// NewMapping returns an empty ordered-mapping Node.
func NewMapping() *Node { return &Node{Kind: KindMapping, Map: NewOrderedMap()} }

// NewList returns a list Node wrapping the supplied elements.
func NewList(items ...*Node) *Node { return &Node{Kind: KindList, List: items} }

// IsMapping reports whether n is a mapping node.
func (n *Node) IsMapping() bool { return n != nil && n.Kind == KindMapping }

// IsList reports whether n is a list node.
func (n *Node) IsList() bool { return n != nil && n.Kind == KindList }

// Get returns the named child of a mapping node, or nil if absent or n is
// not a mapping.
func (n *Node) Get(key string) *Node {
	if !n.IsMapping() {
		return nil
	}
	v, _ := n.Map.Get(key)
	return v
}

// Set assigns the named child of a mapping node, creating the mapping's
// backing store if required. It is a no-op if n is not a mapping.
func (n *Node) Set(key string, v *Node) {
	if !n.IsMapping() {
		return
	}
	n.Map.Set(key, v)
}

// EnsureChildMapping returns the named child mapping, creating it (and
// appending it to n) if it does not already exist.
func (n *Node) EnsureChildMapping(key string) *Node {
	if child := n.Get(key); child.IsMapping() {
		return child
	}
	child := NewMapping()
	n.Set(key, child)
	return child
}

// Attrs returns the reserved "$" attributes sub-mapping, creating it if
// absent.
func (n *Node) Attrs() *Node {
	return n.EnsureChildMapping(AttrsKey)
}

// SetAttr sets a single attribute under the reserved "$" sub-mapping.
func (n *Node) SetAttr(name, value string) {
	n.Attrs().Set(name, NewString(value))
}

// DeepCopy returns a fully independent copy of n.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Str: n.Str, Num: n.Num, Bool: n.Bool}
	if n.Map != nil {
		out.Map = n.Map.DeepCopy()
	}
	if n.List != nil {
		out.List = make([]*Node, len(n.List))
		for i, e := range n.List {
			out.List[i] = e.DeepCopy()
		}
	}
	return out
}

// MergeInto deep-merges src into n in place (src's values win on conflict,
// via mergo.WithOverride; nested mappings are merged key by key). Keys
// already in n keep their order, and keys introduced by src follow them.
// It follows the teacher's config-defaulting idiom
// (mergo.Merge(&resolvedConfig, DefaultConfig) in rpcsessionfactory.go)
// applied here to tree values instead of structs.
func (n *Node) MergeInto(src *Node) error {
	if !n.IsMapping() || !src.IsMapping() {
		return errors.New("tree: MergeInto requires two mapping nodes")
	}

	dst := n.Map.asGenericMap()
	overlay := src.Map.asGenericMap()

	if err := mergo.Map(&dst, overlay, mergo.WithOverride); err != nil {
		return errors.Wrap(err, "tree: deep-merge failed")
	}

	merged, err := fromGenericMap(dst)
	if err != nil {
		return errors.Wrap(err, "tree: deep-merge failed")
	}
	var reorder func(orig, m *OrderedMap) *OrderedMap
	reorder = func(orig, m *OrderedMap) *OrderedMap {
		out := NewOrderedMap()
		for _, k := range append(orig.Keys(), m.Keys()...) {
			v, ok := m.Get(k)
			if _, done := out.Get(k); done || !ok {
				continue
			}
			if o, had := orig.Get(k); had && o.IsMapping() && v.IsMapping() {
				v.Map = reorder(o.Map, v.Map)
			}
			out.Set(k, v)
		}
		return out
	}
	n.Map = reorder(n.Map, merged.Map)
	return nil
}

// AsGo converts the tree to a plain Go value (map[string]interface{},
// []interface{}, string, float64, bool, or nil) suitable for round-tripping
// through mergo or for callers outside this module.
func (n *Node) AsGo() interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindString:
		return n.Str
	case KindNumber:
		return n.Num
	case KindBool:
		return n.Bool
	case KindList:
		out := make([]interface{}, len(n.List))
		for i, e := range n.List {
			out[i] = e.AsGo()
		}
		return out
	case KindMapping:
		return n.Map.asGenericMap()
	default:
		return nil
	}
}
