package tree

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("b", NewString("2"))
	m.Set("a", NewString("1"))
	m.Set("c", NewString("3"))

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
}

func TestOrderedMapSetExistingKeyKeepsOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("a", NewString("1"))
	m.Set("b", NewString("2"))
	m.Set("a", NewString("updated"))

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "updated", v.Str)
}

func TestNodeDeepCopyIsIndependent(t *testing.T) {
	orig := NewMapping()
	orig.Set("name", NewString("eth1"))
	child := NewMapping()
	child.Set("count", NewNumber(3))
	orig.Set("child", child)

	cp := orig.DeepCopy()
	cp.Get("child").Set("count", NewNumber(99))

	assert.Equal(t, float64(3), orig.Get("child").Get("count").Num, "original must be unaffected by copy mutation")
	assert.Equal(t, float64(99), cp.Get("child").Get("count").Num)
}

func TestNodeSetAttr(t *testing.T) {
	n := NewMapping()
	n.SetAttr("xmlns", "http://example.com")

	assert.Equal(t, "http://example.com", n.Get(AttrsKey).Get("xmlns").Str)
}

func TestMergeIntoDeepMerges(t *testing.T) {
	dst := NewMapping()
	dst.Set("name", NewString("eth1"))
	nested := NewMapping()
	nested.Set("mtu", NewNumber(1500))
	dst.Set("config", nested)

	src := NewMapping()
	overlayNested := NewMapping()
	overlayNested.Set("description", NewString("uplink"))
	src.Set("config", overlayNested)

	err := dst.MergeInto(src)
	assert.NoError(t, err)
	assert.Equal(t, "eth1", dst.Get("name").Str)
	assert.Equal(t, float64(1500), dst.Get("config").Get("mtu").Num)
	assert.Equal(t, "uplink", dst.Get("config").Get("description").Str)
}

func TestMergeIntoRejectsNonMappings(t *testing.T) {
	err := NewString("x").MergeInto(NewMapping())
	assert.Error(t, err)
}
