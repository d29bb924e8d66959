package client

import (
	"context"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/resolver"
	"github.com/xlnconf/netconf/tree"
)

// RPC implements §4.6 rpc(): xpath must be non-empty and not exactly "/"
// or "//". The target is built via strict-XPath only (no schema fallback),
// values are deep-merged into the resolved terminal, and the whole built
// tree is submitted as the RPC body (the session wraps it in <rpc>, so no
// extra "rpc" wrapper is added here).
func (c *impl) RPC(ctx context.Context, xpath string, values *tree.Node) (*async.Sequence[*tree.Node], error) {
	if c.cfg.ReadOnly {
		return nil, ncerrors.New(ncerrors.KindReadOnly, "Operation not performed: in read-only mode")
	}
	if xpath == "" || xpath == "/" || xpath == "//" {
		return nil, ncerrors.New(ncerrors.KindInvalidArgument, "xpath must be non-empty and not exactly \"/\" or \"//\"")
	}

	target := tree.NewMapping()
	results, err := resolver.Build(ctx, xpath, target, nil, c.cfg.Namespace, nil, true)
	if err != nil {
		return nil, err
	}
	if values != nil {
		if err := results[0].MergeInto(values); err != nil {
			return nil, err
		}
	}

	root, err := c.sendOne(ctx, target)
	if err != nil {
		return nil, err
	}
	return one(root.Get("rpc-reply")), nil
}
