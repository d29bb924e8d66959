package client

import (
	"context"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/resolver"
	"github.com/xlnconf/netconf/tree"
)

const (
	nmdaNamespace       = "urn:ietf:params:xml:ns:yang:ietf-netconf-nmda"
	datastoresNamespace = "urn:ietf:params:xml:ns:yang:ietf-datastores"
)

// GetData implements §4.6 getData: resultType selects between the classic
// get RPC (ResultUndefined) and the NMDA get-data RPC (config/state/schema),
// and the unwrapped rpc-reply.data is pruned down to the node addressed by
// xpath (§4.5.2), following the overview's reverse data-flow
// "Client API (post-process) -> Resolver (prune) -> caller".
func (c *impl) GetData(ctx context.Context, xpath string, resultType ResultType) (*async.Sequence[*tree.Node], error) {
	if !resultType.valid() {
		return nil, ncerrors.New(ncerrors.KindInvalidArgument, "resultType must be one of config, state, schema or empty")
	}

	body := buildGetRequest(xpath, resultType)

	root, err := c.sendOne(ctx, body)
	if err != nil {
		return nil, err
	}
	reply := root.Get("rpc-reply")
	data := reply.Get("data")
	if data == nil {
		return nil, ncerrors.New(ncerrors.KindSemantic, "rpc-reply did not include data")
	}

	if resultType == ResultSchema {
		if attrs := data.Get(tree.AttrsKey); attrs.IsMapping() {
			data.Map.Delete(tree.AttrsKey)
		}
	}

	pruned := resolver.Prune(data, xpath)
	return one(pruned), nil
}

func buildGetRequest(xpath string, resultType ResultType) *tree.Node {
	if resultType == ResultUndefined {
		filter := tree.NewMapping()
		filter.SetAttr("type", "xpath")
		filter.SetAttr("select", xpath)
		get := tree.NewMapping()
		get.Set("filter", filter)
		root := tree.NewMapping()
		root.Set("get", get)
		return root
	}

	getData := tree.NewMapping()
	getData.SetAttr("xmlns", nmdaNamespace)
	getData.SetAttr("xmlns:ds", datastoresNamespace)

	datastore := tree.NewString("ds:operational")
	getData.Set("datastore", datastore)
	getData.Set("xpath-filter", tree.NewString(xpath))

	switch resultType {
	case ResultSchema:
		getData.Set("max-depth", tree.NewNumber(1))
	case ResultConfig:
		getData.Set("config-filter", tree.NewString("true"))
		getData.Set("with-defaults", tree.NewString("report-all"))
	case ResultState:
		getData.Set("config-filter", tree.NewString("false"))
		getData.Set("with-defaults", tree.NewString("report-all"))
	}

	root := tree.NewMapping()
	root.Set("get-data", getData)
	return root
}

// fetchSchema implements resolver.SchemaSource (§4.5.1): it fetches the
// max-depth=1 skeleton used to guide wildcard XPath resolution, reusing
// the same get-data request GetData(..., ResultSchema) issues.
func (c *impl) fetchSchema(xpath string) resolver.SchemaSource {
	return func(ctx context.Context) (*tree.Node, error) {
		body := buildGetRequest(xpath, ResultSchema)
		root, err := c.sendOne(ctx, body)
		if err != nil {
			return nil, err
		}
		reply := root.Get("rpc-reply")
		data := reply.Get("data")
		if data == nil {
			return nil, ncerrors.New(ncerrors.KindSemantic, "schema fetch returned empty")
		}
		if attrs := data.Get(tree.AttrsKey); attrs.IsMapping() {
			data.Map.Delete(tree.AttrsKey)
		}
		return data, nil
	}
}
