package resolver

import "github.com/xlnconf/netconf/tree"

// NamespaceConfig carries the declared namespaces of the connection
// parameters (§3): either a single default namespace URI, or a set of
// alias->URI pairs, or both. Grounded on the teacher's
// netconf/ops.Namespace{ID, Path} + getNamespaceAttributes helper, widened
// here from subtree-filter-only use to xpath-filter namespace injection.
type NamespaceConfig struct {
	Default string
	Aliases map[string]string
}

// Empty reports whether the configuration declares nothing to inject.
func (c *NamespaceConfig) Empty() bool {
	return c == nil || (c.Default == "" && len(c.Aliases) == 0)
}

func (c *NamespaceConfig) injectInto(n *tree.Node) {
	if c.Empty() {
		return
	}
	if c.Default != "" {
		n.SetAttr("xmlns", c.Default)
	}
	for alias, uri := range c.Aliases {
		n.SetAttr("xmlns:"+alias, uri)
	}
}

// WithNamespace returns a NamespaceConfig declaring a single default
// namespace URI.
func WithNamespace(uri string) *NamespaceConfig {
	return &NamespaceConfig{Default: uri}
}

// WithAlias returns a NamespaceConfig declaring a single alias->URI pair.
func WithAlias(alias, uri string) *NamespaceConfig {
	return &NamespaceConfig{Aliases: map[string]string{alias: uri}}
}
