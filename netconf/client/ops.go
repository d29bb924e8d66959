package client

import (
	"context"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/tree"
)

const netconfMonitoringNamespace = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"

// sendSimpleRPC submits body (the operating element, not yet rpc-wrapped)
// and returns the reply body as a single-value sequence, used by every
// supplemented pass-through RPC in this file (§5 SUPPLEMENTED FEATURES).
func (c *impl) sendSimpleRPC(ctx context.Context, body *tree.Node) (*async.Sequence[*tree.Node], error) {
	root, err := c.sendOne(ctx, body)
	if err != nil {
		return nil, err
	}
	return one(root.Get("rpc-reply")), nil
}

func datastoreTarget(datastore string) *tree.Node {
	t := tree.NewMapping()
	ds := tree.NewMapping()
	ds.Set(datastore, tree.NewNull())
	t.Set("target", ds)
	return t
}

// Lock issues a lock request against target (e.g. "running"), grounded on
// the teacher's ops.Session.Lock.
func (c *impl) Lock(ctx context.Context, target string) (*async.Sequence[*tree.Node], error) {
	body := tree.NewMapping()
	body.Set("lock", datastoreTarget(target))
	return c.sendSimpleRPC(ctx, body)
}

// Unlock issues an unlock request against target, grounded on the
// teacher's ops.Session.Unlock.
func (c *impl) Unlock(ctx context.Context, target string) (*async.Sequence[*tree.Node], error) {
	body := tree.NewMapping()
	body.Set("unlock", datastoreTarget(target))
	return c.sendSimpleRPC(ctx, body)
}

// Discard issues a discard-changes request, grounded on the teacher's
// ops.Session.Discard.
func (c *impl) Discard(ctx context.Context) (*async.Sequence[*tree.Node], error) {
	body := tree.NewMapping()
	body.Set("discard-changes", tree.NewNull())
	return c.sendSimpleRPC(ctx, body)
}

// CopyConfig issues a copy-config request from source to target, grounded
// on the teacher's ops.Session.CopyConfig.
func (c *impl) CopyConfig(ctx context.Context, source, target string) (*async.Sequence[*tree.Node], error) {
	body := tree.NewMapping()
	copyCfg := tree.NewMapping()

	tgtDs := tree.NewMapping()
	tgtDs.Set(target, tree.NewNull())
	copyCfg.Set("target", tgtDs)

	srcDs := tree.NewMapping()
	srcDs.Set(source, tree.NewNull())
	copyCfg.Set("source", srcDs)

	body.Set("copy-config", copyCfg)
	return c.sendSimpleRPC(ctx, body)
}

// DeleteConfig issues a delete-config request against target, grounded on
// the teacher's ops.Session.DeleteConfig.
func (c *impl) DeleteConfig(ctx context.Context, target string) (*async.Sequence[*tree.Node], error) {
	body := tree.NewMapping()
	body.Set("delete-config", datastoreTarget(target))
	return c.sendSimpleRPC(ctx, body)
}

// KillSession issues a kill-session request for id, grounded on the
// teacher's ops.Session.KillSession.
func (c *impl) KillSession(ctx context.Context, id uint64) (*async.Sequence[*tree.Node], error) {
	if id == 0 {
		return nil, ncerrors.New(ncerrors.KindInvalidArgument, "session id must be non-zero")
	}
	body := tree.NewMapping()
	kill := tree.NewMapping()
	kill.Set("session-id", tree.NewNumber(float64(id)))
	body.Set("kill-session", kill)
	return c.sendSimpleRPC(ctx, body)
}

// GetSchemas returns the ietf-netconf-monitoring schema list via a subtree
// get, grounded on the teacher's ops.Session.GetSchemas
// (createGetSubtreeRequest("<netconf-state><schemas/></netconf-state>")).
func (c *impl) GetSchemas(ctx context.Context) (*async.Sequence[*tree.Node], error) {
	state := tree.NewMapping()
	state.SetAttr("xmlns", netconfMonitoringNamespace)
	state.Set("schemas", tree.NewNull())

	filter := tree.NewMapping()
	filter.SetAttr("type", "subtree")
	filter.Set("netconf-state", state)

	get := tree.NewMapping()
	get.Set("filter", filter)

	body := tree.NewMapping()
	body.Set("get", get)

	root, err := c.sendOne(ctx, body)
	if err != nil {
		return nil, err
	}
	reply := root.Get("rpc-reply")
	return one(reply.Get("data")), nil
}

// GetSchema returns the text of the schema identified by identifier and
// version, grounded on the teacher's ops.Session.GetSchema
// (urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring get-schema).
func (c *impl) GetSchema(ctx context.Context, identifier, version string) (*async.Sequence[*tree.Node], error) {
	getSchema := tree.NewMapping()
	getSchema.SetAttr("xmlns", netconfMonitoringNamespace)
	getSchema.Set("identifier", tree.NewString(identifier))
	if version != "" {
		getSchema.Set("version", tree.NewString(version))
	}

	body := tree.NewMapping()
	body.Set("get-schema", getSchema)

	root, err := c.sendOne(ctx, body)
	if err != nil {
		return nil, err
	}
	reply := root.Get("rpc-reply")
	return one(reply.Get("data")), nil
}
