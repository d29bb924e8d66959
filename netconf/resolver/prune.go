package resolver

import "github.com/xlnconf/netconf/tree"

// Prune trims a response tree down to the node addressed by the XPath that
// was used to request it (§4.5.2): a NETCONF server always returns the
// full ancestor chain, callers usually want just the node they asked for.
//
// Prune never mutates in; every returned Node is either in itself (or a
// descendant reached only through Get, never through a copy) or a freshly
// built single-key wrapper around such a reference.
func Prune(in *tree.Node, xpath string) *tree.Node {
	if hasUnion(xpath) {
		return in
	}

	canon := canonicalize(xpath)
	segs := segments(canon)
	if len(segs) == 0 {
		return in
	}

	current := in
	lastKey := ""
	lastResolved := in

	idx := 0
	for idx < len(segs) {
		seg := segs[idx]

		if seg == "*" {
			if idx == len(segs)-1 {
				return current
			}

			next := segs[idx+1]
			match, matches, blocked := deepSearch(current, next)
			if blocked {
				return in
			}
			if matches != 1 {
				return wrapResult(lastKey, lastResolved)
			}

			current = match
			lastKey = next
			lastResolved = match
			idx += 2
			continue
		}

		if current.IsList() {
			return wrapResult(lastKey, lastResolved)
		}
		child := current.Get(seg)
		if child == nil {
			return wrapResult(lastKey, lastResolved)
		}

		current = child
		lastKey = seg
		lastResolved = child
		idx++
	}

	return wrapResult(lastKey, lastResolved)
}

func wrapResult(key string, value *tree.Node) *tree.Node {
	if key == "" {
		return value
	}
	out := tree.NewMapping()
	out.Set(key, value)
	return out
}

// deepSearch implements the unique-deep search used after "*": it looks for
// a mapping beneath current whose direct child is named name, never
// descending past a match or past a list that isn't itself the match (a
// list blocks further descent into its items). matches counts the number of
// independent, non-overlapping matches found; blocked reports whether any
// branch was stopped by an intervening list before it could be resolved
// one way or the other.
func deepSearch(current *tree.Node, name string) (match *tree.Node, matches int, blocked bool) {
	if !current.IsMapping() {
		return nil, 0, true
	}

	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		if !n.IsMapping() {
			return
		}
		for _, k := range n.Map.Keys() {
			if k == tree.AttrsKey || k == tree.TextKey {
				continue
			}
			child := n.Get(k)
			if k == name {
				matches++
				if matches == 1 {
					match = child
				}
				continue
			}
			if child.IsList() {
				blocked = true
				continue
			}
			if child.IsMapping() {
				walk(child)
			}
		}
	}
	walk(current)
	return match, matches, blocked
}
