package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/tree"
)

// SchemaSource lazily produces the skeleton tree (§3 glossary "Schema in
// this spec") used to guide resolution of a wildcard XPath. It is awaited
// at most once per Build call.
type SchemaSource func(ctx context.Context) (*tree.Node, error)

// GuessedNamespaceSource lazily produces a single best-guess namespace URI
// for the strict-XPath path, when no namespace was explicitly configured.
// ok is false if no guess is available.
type GuessedNamespaceSource func(ctx context.Context) (uri string, ok bool, err error)

var segmentGrammar = regexp.MustCompile(`^([A-Za-z_][\w.-]*)(?:\[([A-Za-z_][\w.-]*)=(?:'([^']*)'|"([^"]*)")\])?$`)

type parsedSegment struct {
	name         string
	hasPredicate bool
	predicateKey string
	predicateVal string
}

func parseSegment(seg string) (parsedSegment, bool) {
	m := segmentGrammar.FindStringSubmatch(seg)
	if m == nil {
		return parsedSegment{}, false
	}
	if m[2] == "" {
		return parsedSegment{name: m[1]}, true
	}
	val := m[3]
	if m[4] != "" {
		val = m[4]
	}
	return parsedSegment{name: m[1], hasPredicate: true, predicateKey: m[2], predicateVal: val}, true
}

// Build synthesizes an edit-config target (or targets) from xpath (§4.5.1).
// target is the mapping the strict-XPath path builds into directly; the
// schema path builds into a deep copy of the awaited schema tree and then
// overwrites *target with that copy, so target holds the full build root
// on either path.
func Build(
	ctx context.Context,
	xpath string,
	target *tree.Node,
	schema SchemaSource,
	ns *NamespaceConfig,
	guessed GuessedNamespaceSource,
	allowMultipleEdit bool,
) ([]*tree.Node, error) {
	if xpath == "" || xpath == "/" || xpath == "//" {
		return nil, ncerrors.New(ncerrors.KindInvalidArgument, "xpath must be non-empty and not exactly \"/\" or \"//\"")
	}
	if hasUnion(xpath) {
		return nil, ncerrors.New(ncerrors.KindInvalidArgument, "xpath must not contain the union operator \"|\"")
	}

	var results []*tree.Node
	var err error

	if !strings.Contains(xpath, "//") && !strings.Contains(xpath, "*") {
		results, err = buildStrict(ctx, xpath, target, ns, guessed)
		if err != nil {
			return nil, err
		}
	}

	if results == nil {
		results, err = buildSchema(ctx, xpath, target, schema, ns)
		if err != nil {
			return nil, err
		}
	}

	if len(results) == 0 {
		return nil, ncerrors.New(ncerrors.KindSemantic, "Failed to build the edit config message matching the XPath/Schema")
	}
	if len(results) > 1 && !allowMultipleEdit {
		return nil, &ncerrors.MultipleEditError{Count: len(results)}
	}
	return results, nil
}

// buildStrict implements §4.5.1 step 1. A nil, false return (no error)
// signals "fall through to the schema path" because some segment failed
// the grammar.
func buildStrict(ctx context.Context, xpath string, target *tree.Node, ns *NamespaceConfig, guessed GuessedNamespaceSource) ([]*tree.Node, error) {
	rawSegs := strings.Split(xpath, "/")

	parsed := make([]parsedSegment, 0, len(rawSegs))
	for _, raw := range rawSegs {
		if raw == "" {
			continue
		}
		seg, ok := parseSegment(raw)
		if !ok {
			return nil, nil
		}
		parsed = append(parsed, seg)
	}
	if len(parsed) == 0 {
		return nil, nil
	}

	cur := target
	for i, seg := range parsed {
		child := cur.EnsureChildMapping(seg.name)
		if seg.hasPredicate {
			child.Set(seg.predicateKey, tree.NewString(seg.predicateVal))
		}
		if i == 0 {
			if err := injectFirstSegmentNamespace(ctx, child, ns, guessed); err != nil {
				return nil, err
			}
		}
		cur = child
	}

	return []*tree.Node{cur}, nil
}

func injectFirstSegmentNamespace(ctx context.Context, n *tree.Node, ns *NamespaceConfig, guessed GuessedNamespaceSource) error {
	if !ns.Empty() {
		ns.injectInto(n)
		return nil
	}
	if guessed == nil {
		return nil
	}
	uri, ok, err := guessed(ctx)
	if err != nil {
		return ncerrors.Wrap(ncerrors.KindSemantic, err, "guessed namespace producer failed")
	}
	if ok && uri != "" {
		n.SetAttr("xmlns", uri)
	}
	return nil
}

// buildSchema implements §4.5.1 step 2. On success it overwrites *target in
// place with the deep-copied, pruned schema tree, so that - symmetrically
// with buildStrict - the caller's target always ends up holding the full
// build root (needed to wrap the result in a <config> body), not just the
// matched terminal mappings returned in results.
func buildSchema(ctx context.Context, xpath string, target *tree.Node, schema SchemaSource, ns *NamespaceConfig) ([]*tree.Node, error) {
	canon := canonicalize(xpath)
	segs := segments(canon)
	if len(segs) == 0 {
		return nil, ncerrors.New(ncerrors.KindSemantic, "Failed to build the edit config message matching the XPath/Schema")
	}
	if schema == nil {
		return nil, ncerrors.New(ncerrors.KindSemantic, "schema fetch returned empty")
	}

	schemaTree, err := schema(ctx)
	if err != nil {
		return nil, ncerrors.Wrap(ncerrors.KindSemantic, err, "schema fetch failed")
	}
	if schemaTree == nil {
		return nil, ncerrors.New(ncerrors.KindSemantic, "schema fetch returned empty")
	}

	root := schemaTree.DeepCopy()

	var results []*tree.Node
	walkSchema(root, nil, "", segs, 0, true, ns, &results)

	if target != nil {
		*target = *root
	}

	return results, nil
}

// walkSchema performs the schema-path traversal of §4.5.1 step 2. node is
// the current position; parent/parentKey identify how to reach node from
// its parent (nil parent at the root), used to prune dead branches. Returns
// whether this branch produced at least one result.
func walkSchema(node *tree.Node, parent *tree.Node, parentKey string, segs []string, idx int, firstStep bool, ns *NamespaceConfig, results *[]*tree.Node) bool {
	if node.IsList() {
		fresh := tree.NewMapping()
		if parent != nil {
			parent.Set(parentKey, fresh)
		}
		node = fresh
	}

	if firstStep {
		ns.injectInto(node)
	}

	if idx == len(segs) {
		stripToTerminal(node)
		*results = append(*results, node)
		return true
	}

	seg := segs[idx]

	if seg == "*" {
		if idx == len(segs)-1 {
			return walkSchema(node, parent, parentKey, segs, idx+1, false, ns, results)
		}
		next := segs[idx+1]
		produced := false
		for _, m := range findDescendantsNamed(node, next) {
			if walkSchema(m.node, m.parent, m.key, segs, idx+2, false, ns, results) {
				produced = true
			}
		}
		if !produced && parent != nil {
			parent.Delete(parentKey)
		}
		return produced
	}

	child := node.Get(seg)
	if child == nil {
		if parent != nil {
			parent.Delete(parentKey)
		}
		return false
	}
	produced := walkSchema(child, node, seg, segs, idx+1, false, ns, results)
	if !produced && parent != nil {
		parent.Delete(parentKey)
	}
	return produced
}

type descendantMatch struct {
	node   *tree.Node
	parent *tree.Node
	key    string
}

// findDescendantsNamed searches node and its descendant mappings for every
// non-overlapping occurrence of a direct child named name, stopping at each
// match without searching inside it for nested occurrences of the same
// name.
func findDescendantsNamed(node *tree.Node, name string) []descendantMatch {
	var out []descendantMatch
	var visit func(n *tree.Node)
	visit = func(n *tree.Node) {
		if !n.IsMapping() {
			return
		}
		if child := n.Get(name); child != nil {
			out = append(out, descendantMatch{node: child, parent: n, key: name})
			return
		}
		for _, k := range n.Map.Keys() {
			if k == tree.AttrsKey || k == tree.TextKey {
				continue
			}
			v := n.Get(k)
			if v.IsList() {
				for _, item := range v.List {
					visit(item)
				}
			} else {
				visit(v)
			}
		}
	}
	visit(node)
	return out
}

// stripToTerminal removes every nested object/array sub-key of n, leaving
// only primitives and the reserved attributes key.
func stripToTerminal(n *tree.Node) {
	if !n.IsMapping() {
		return
	}
	for _, k := range n.Map.Keys() {
		if k == tree.AttrsKey {
			continue
		}
		v := n.Get(k)
		if v.IsMapping() || v.IsList() {
			n.Map.Delete(k)
		}
	}
}
