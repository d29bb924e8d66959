package client

import (
	"context"
	"strings"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/session"
	"github.com/xlnconf/netconf/netconf/testfixture"
	"github.com/xlnconf/netconf/tree"
)

const serverHello = `<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">` +
	`<capabilities>` +
	`<capability>urn:ietf:params:xml:ns:netconf:base:1.0</capability>` +
	`<capability>urn:ietf:params:netconf:base:1.0</capability>` +
	`</capabilities>` +
	`<session-id>7</session-id>` +
	`</hello>`

func newFixtureClient(cfg *session.Config, handlers ...testfixture.RequestHandler) (Client, *testfixture.Peer) {
	tr, peer := testfixture.NewTransportPair(serverHello)
	for _, h := range handlers {
		peer.WithRequestHandler(h)
	}
	peer.Serve()
	return NewFromTransport(cfg, tr), peer
}

func replyTo(id string, body string) testfixture.RequestHandler {
	return func(msg []byte) ([]byte, bool) {
		if !strings.Contains(string(msg), `message-id="`+id+`"`) {
			return nil, false
		}
		return []byte(`<rpc-reply message-id="` + id + `">` + body + `</rpc-reply>`), true
	}
}

func ctxT() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func TestHelloEntersReadyAndReturnsSessionID(t *testing.T) {
	c, peer := newFixtureClient(nil)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	seq, err := c.Hello(ctx)
	assert.NoError(t, err)

	hello, err := seq.Collect(ctx)
	assert.NoError(t, err)
	assert.Len(t, hello, 1)
	assert.Equal(t, float64(7), hello[0].Get("hello").Get("session-id").Num)
}

func TestGetDataUndefinedUnwrapsAndPrunes(t *testing.T) {
	c, peer := newFixtureClient(nil,
		replyTo("1", `<data><a><b><c>3</c></b></a></data>`),
	)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	seq, err := c.GetData(ctx, "/a/b/c", ResultUndefined)
	assert.NoError(t, err)

	results, err := seq.Collect(ctx)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, float64(3), results[0].Get("c").Num)
}

func TestGetDataRejectsUnknownResultType(t *testing.T) {
	c, peer := newFixtureClient(nil)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	_, err := c.GetData(ctx, "/a", ResultType("bogus"))
	assert.Error(t, err)
	var ncErr *ncerrors.Error
	assert.ErrorAs(t, err, &ncErr)
	assert.Equal(t, ncerrors.KindInvalidArgument, ncErr.Kind)
}

func TestEditConfigMergeFailsWithoutOK(t *testing.T) {
	c, peer := newFixtureClient(&session.Config{},
		replyTo("1", `<data/>`),
	)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	values := tree.NewMapping()
	values.Set("description", tree.NewString("uplink"))

	_, err := c.EditConfigMerge(ctx, "/interfaces/interface[name='eth1']", values)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "did not include OK")
}

func TestEditConfigMergeSucceeds(t *testing.T) {
	c, peer := newFixtureClient(&session.Config{},
		replyTo("1", `<ok/>`),
	)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	values := tree.NewMapping()
	values.Set("description", tree.NewString("uplink"))

	seq, err := c.EditConfigMerge(ctx, "/interfaces/interface[name='eth1']", values)
	assert.NoError(t, err)
	results, err := seq.Collect(ctx)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.NotNil(t, results[0].Get("ok"))
}

func TestEditConfigCreateSetsOperationMarkers(t *testing.T) {
	var captured string
	c, peer := newFixtureClient(&session.Config{},
		func(msg []byte) ([]byte, bool) {
			if !strings.Contains(string(msg), "edit-config") {
				return nil, false
			}
			captured = string(msg)
			return []byte(`<rpc-reply message-id="1"><ok/></rpc-reply>`), true
		},
	)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	values := tree.NewMapping()
	values.Set("name", tree.NewString("eth2"))

	_, err := c.EditConfigCreate(ctx, "/interfaces/interface[name='eth2']", values, "eth1")
	assert.NoError(t, err)
	assert.Contains(t, captured, `nc:operation="create"`)
	assert.Contains(t, captured, `yang:insert="before"`)
	assert.Contains(t, captured, `yang:key="eth1"`)
}

func TestReadOnlyModeBlocksWritesSynchronously(t *testing.T) {
	cfg := &session.Config{ReadOnly: true}
	c, peer := newFixtureClient(cfg)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	_, err := c.EditConfigMerge(ctx, "/interfaces/interface[name='eth1']", tree.NewMapping())
	assert.Error(t, err)
	var ncErr *ncerrors.Error
	assert.ErrorAs(t, err, &ncErr)
	assert.Equal(t, ncerrors.KindReadOnly, ncErr.Kind)

	_, err = c.RPC(ctx, "/reboot", nil)
	assert.Error(t, err)
	assert.ErrorAs(t, err, &ncErr)
	assert.Equal(t, ncerrors.KindReadOnly, ncErr.Kind)
}

func TestRPCWrapsBuiltTargetDirectly(t *testing.T) {
	var captured string
	c, peer := newFixtureClient(&session.Config{},
		func(msg []byte) ([]byte, bool) {
			if !strings.Contains(string(msg), "reboot-information") {
				return nil, false
			}
			captured = string(msg)
			return []byte(`<rpc-reply message-id="1"><ok/></rpc-reply>`), true
		},
	)
	defer peer.Close()

	ctx, cancel := ctxT()
	defer cancel()

	values := tree.NewMapping()
	values.Set("delay", tree.NewNumber(5))

	seq, err := c.RPC(ctx, "/reboot-information", values)
	assert.NoError(t, err)
	_, err = seq.Collect(ctx)
	assert.NoError(t, err)
	assert.Contains(t, captured, "<reboot-information>")
	assert.Contains(t, captured, "<delay>5</delay>")
}

func TestCloseBeforeOpenReturnsNotOpenedError(t *testing.T) {
	tr, peer := testfixture.NewTransportPair(serverHello)
	peer.Serve()
	defer peer.Close()

	c := NewFromTransport(nil, tr)

	ctx, cancel := ctxT()
	defer cancel()
	err := c.Close(ctx)
	assert.Error(t, err)
}
