// Package client implements the public surface of the specification (§4.6):
// Hello, GetData, the EditConfig* family, RPC, Subscription and Close. It
// composes netconf/transport, netconf/session and netconf/resolver exactly
// in the order the overview's data-flow diagram describes (Client API ->
// Resolver -> Codec -> Session -> Transport, and back), and is the only
// package a consumer of this module needs to import.
//
// Grounded on the teacher's netconf/ops package (Get/EditConfig/Do shape)
// and client/rpcsessionfactory.go (dial-then-session-construct wiring),
// generalized from the teacher's fixed-struct request/response types to
// this spec's dynamic tree.Node model.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/session"
	"github.com/xlnconf/netconf/netconf/transport"
	"github.com/xlnconf/netconf/tree"
)

// ResultType selects the RPC variant GetData uses (§4.6).
type ResultType string

// The result types GetData accepts; ResultUndefined selects the classic
// get RPC, the others select get-data (NMDA).
const (
	ResultUndefined ResultType = ""
	ResultConfig    ResultType = "config"
	ResultState     ResultType = "state"
	ResultSchema    ResultType = "schema"
)

func (r ResultType) valid() bool {
	switch r {
	case ResultUndefined, ResultConfig, ResultState, ResultSchema:
		return true
	default:
		return false
	}
}

// SubscriptionOption selects how a subscription's create-subscription
// request is filtered: by XPath or by named stream, per §4.6.
type SubscriptionOption struct {
	XPath  string
	Stream string
}

// Client is the public surface of the library (§4.6). Every method returns
// a cancellable sequence (§9), but the sequences are not cold: the first
// call opens the session (dial and hello) before returning, and every
// method except Subscription also sends its request and waits for the
// reply before returning, so its sequence only replays that result.
// Subscription's create-subscription request is written when its sequence
// is first pulled.
type Client interface {
	Hello(ctx context.Context) (*async.Sequence[*tree.Node], error)

	GetData(ctx context.Context, xpath string, resultType ResultType) (*async.Sequence[*tree.Node], error)

	EditConfigMerge(ctx context.Context, xpath string, values *tree.Node) (*async.Sequence[*tree.Node], error)
	EditConfigCreate(ctx context.Context, xpath string, values *tree.Node, beforeKey string) (*async.Sequence[*tree.Node], error)
	EditConfigDelete(ctx context.Context, xpath string, values *tree.Node) (*async.Sequence[*tree.Node], error)
	EditConfigCreateListItems(ctx context.Context, xpath string, items []*tree.Node) (*async.Sequence[*tree.Node], error)
	EditConfigDeleteListItems(ctx context.Context, xpath string, items []*tree.Node) (*async.Sequence[*tree.Node], error)

	RPC(ctx context.Context, xpath string, values *tree.Node) (*async.Sequence[*tree.Node], error)

	Subscription(ctx context.Context, opt SubscriptionOption, stop <-chan struct{}) (*async.Sequence[*tree.Node], error)

	// Lock, Unlock, Discard, CopyConfig, DeleteConfig, KillSession,
	// GetSchemas and GetSchema are supplemented sibling operations (not
	// named by §4.6 but present on every complete NETCONF client, grounded
	// on the teacher's ops.Session of the same names).
	Lock(ctx context.Context, target string) (*async.Sequence[*tree.Node], error)
	Unlock(ctx context.Context, target string) (*async.Sequence[*tree.Node], error)
	Discard(ctx context.Context) (*async.Sequence[*tree.Node], error)
	CopyConfig(ctx context.Context, source, target string) (*async.Sequence[*tree.Node], error)
	DeleteConfig(ctx context.Context, target string) (*async.Sequence[*tree.Node], error)
	KillSession(ctx context.Context, id uint64) (*async.Sequence[*tree.Node], error)
	GetSchemas(ctx context.Context) (*async.Sequence[*tree.Node], error)
	GetSchema(ctx context.Context, identifier, version string) (*async.Sequence[*tree.Node], error)

	Close(ctx context.Context) error
}

const notificationNamespace = "urn:ietf:params:xml:ns:netconf:notification:1.0"

type impl struct {
	cfg             *session.Config
	dialer          transport.Dialer
	target          string
	presetTransport transport.Transport

	mu      sync.Mutex
	sess    session.Session
	openErr error
	once    sync.Once
}

// New returns a Client bound to the given SSH target and connection
// parameters. No connection is attempted until the first API call that
// requires I/O (§3 Lifecycle): New is itself synchronous and cannot fail.
func New(cfg *session.Config, sshConfig *ssh.ClientConfig) Client {
	target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &impl{
		cfg:    cfg,
		dialer: transport.NewDialer(target, sshConfig),
		target: target,
	}
}

// NewFromTransport is the test/fixture seam: it bypasses dialing entirely,
// adopting a caller-supplied, already-open transport.Transport (e.g. the
// one netconf/testfixture's NewTransportPair returns), in the manner of
// client/rpcsessionfactory.go's symmetric NewRPCSessionFromSSHClient.
func NewFromTransport(cfg *session.Config, t transport.Transport) Client {
	return &impl{cfg: cfg, presetTransport: t}
}

// DefaultSSHConfig builds the password-authenticated, host-key-insecure
// ssh.ClientConfig this library uses by default, mirroring the CLI
// collaborator's conventional wiring (damianoneill-net/v2/cli/transport_test.go
// sshConfigWithPassword): NETCONF management sessions are usually opened
// against a known lab/production host by address, not validated against a
// known_hosts file, since host-key management is left to the CLI/deployment
// layer, not this library.
func DefaultSSHConfig(user, password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint: gosec
	}
}

// ensureSession lazily dials the transport and opens+hello's the Session on
// the first call that requires I/O (§3 Lifecycle), caching the outcome
// (success or failure) for every subsequent call.
func (c *impl) ensureSession(ctx context.Context) (session.Session, error) {
	c.once.Do(func() {
		t := c.presetTransport
		if t == nil {
			var err error
			t, err = transport.Dial(ctx, c.dialer, c.target)
			if err != nil {
				c.openErr = err
				return
			}
		}
		s, err := session.Open(ctx, t, c.cfg)
		if err != nil {
			c.openErr = err
			return
		}
		if _, err := s.Hello(ctx); err != nil {
			c.openErr = err
			return
		}
		c.sess = s
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess, c.openErr
}

func (c *impl) Hello(ctx context.Context) (*async.Sequence[*tree.Node], error) {
	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	hello, err := s.Hello(ctx)
	if err != nil {
		return nil, err
	}
	return one(hello), nil
}

func (c *impl) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return ncerrors.New(ncerrors.KindSemantic, "not opened")
	}
	return s.Close(ctx)
}

// sendOne submits body and returns its single rpc-reply result, discarding
// any notification stream (used by every non-subscription RPC).
func (c *impl) sendOne(ctx context.Context, body *tree.Node) (*tree.Node, error) {
	s, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	seq, err := s.Send(ctx, body, nil)
	if err != nil {
		return nil, err
	}
	env, ok, err := seq.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ncerrors.New(ncerrors.KindSemantic, "session closed before rpc-reply was received")
	}
	return env.Result, nil
}

// one returns an already-produced single-value sequence, for API calls
// whose I/O has already completed synchronously relative to the caller
// (e.g. Hello's cached result on repeat calls).
func one[T any](v T) *async.Sequence[T] {
	return async.New(func(_ context.Context, emit func(T) bool, _ <-chan struct{}) error {
		emit(v)
		return nil
	})
}

// subscriptionTraceID tags a subscription's notification-delivery loop
// with a correlation id that prefixes every error the subscription
// returns, since message-ids stay a monotonic per-session counter (§3) and
// errors from several concurrent subscriptions would otherwise be
// indistinguishable.
func subscriptionTraceID() string {
	return uuid.NewString()
}
