package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/tree"
)

// Subscription implements §4.6 subscription(): it submits a
// create-subscription request filtered either by XPath or by named stream,
// then streams the OK rpc-reply followed by each subsequent notification
// until stop fires, at which point the sequence completes with no further
// values. Per §1's "per-subscription trace correlation id", each call tags
// its delivery loop with a fresh uuid that is folded into any error it
// surfaces, since message-ids alone don't distinguish concurrent
// subscriptions in a log the way a per-call id does.
func (c *impl) Subscription(ctx context.Context, opt SubscriptionOption, stop <-chan struct{}) (*async.Sequence[*tree.Node], error) {
	traceID := subscriptionTraceID()

	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "subscription %s", traceID)
	}

	body := buildSubscriptionRequest(opt)

	seq, err := s.Send(ctx, body, stop)
	if err != nil {
		return nil, errors.Wrapf(err, "subscription %s", traceID)
	}

	return async.New(func(ctx context.Context, emit func(*tree.Node) bool, cancel <-chan struct{}) error {
		first := true
		for {
			env, ok, err := seq.Next(ctx)
			if err != nil {
				return errors.Wrapf(err, "subscription %s", traceID)
			}
			if !ok {
				return nil
			}
			if first {
				first = false
				reply := env.Result.Get("rpc-reply")
				if reply.Get("ok") == nil {
					return errors.Wrapf(ncerrors.New(ncerrors.KindSemantic, "server response did not include OK"), "subscription %s", traceID)
				}
				if !emit(reply) {
					return nil
				}
				continue
			}
			notif := env.Result.Get("notification")
			if !emit(notif) {
				return nil
			}
		}
	}), nil
}

func buildSubscriptionRequest(opt SubscriptionOption) *tree.Node {
	create := tree.NewMapping()
	create.SetAttr("xmlns", notificationNamespace)

	if opt.XPath != "" {
		filter := tree.NewMapping()
		filter.SetAttr("type", "xpath")
		filter.SetAttr("select", opt.XPath)
		create.Set("filter", filter)
	}
	if opt.Stream != "" {
		create.Set("stream", tree.NewString(opt.Stream))
	}

	root := tree.NewMapping()
	root.Set("create-subscription", create)
	return root
}
