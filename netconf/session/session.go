// Package session implements the request/reply state machine of §4.4: the
// hello handshake, message-id correlation between a request and its
// rpc-reply, notification delivery, and fatal-error propagation to every
// pending caller. It sits directly on transport.Transport and codec, and
// exposes each in-flight exchange as an async.Sequence[*Envelope].
//
// Grounded on the teacher's netconf/client/message.go (sesImpl's
// request/response multiplexing) and client/rpcsessionfactory.go (the
// connect-then-hello lifecycle), adapted from a per-request regex-matching
// framer to a single shared demultiplexer: one read loop classifies every
// incoming message and routes it to the waiter registered for its
// message-id (or broadcasts it to active subscriptions, for
// notifications). The specification permits either strategy so long as
// the externally observable behaviour is identical.
package session

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/codec"
	"github.com/xlnconf/netconf/netconf/framer"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/transport"
	"github.com/xlnconf/netconf/tree"
)

// State is a Session's position in the lifecycle of §4.4.
type State int

const (
	// StateUninitialized is the client-level placeholder before Open has
	// ever been called; a Session value returned by Open always starts at
	// StateConnecting, since opening the transport already implies the
	// connect phase has completed.
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Envelope pairs a decoded reply or notification with the raw XML text it
// was decoded from. Result is the full decoded message, keyed by its
// top-level element name ("rpc-reply" or "notification").
type Envelope struct {
	XML    string
	Result *tree.Node
}

// Session is a live, message-id-multiplexed NETCONF exchange over an
// already-open transport.
type Session interface {
	// Hello performs the capability exchange on its first call (blocking
	// up to Config.HandshakeTimeout) and returns the cached server hello
	// on every subsequent call.
	Hello(ctx context.Context) (*tree.Node, error)

	// Send encodes body as an <rpc> (assigning the next message-id) and
	// returns a sequence that yields the correlated rpc-reply, followed -
	// if stop is non-nil - by every subsequent notification until stop
	// fires or the sequence is cancelled.
	Send(ctx context.Context, body *tree.Node, stop <-chan struct{}) (*async.Sequence[*Envelope], error)

	// Close sends close-session (ignoring its outcome), tears down the
	// transport, and resolves every still-pending waiter with an error.
	// It is idempotent.
	Close(ctx context.Context) error

	State() State
}

const baseNamespace = "urn:ietf:params:xml:ns:netconf:base:1.0"

type waiterEntry struct {
	id        uint64
	ch        chan *Envelope
	errCh     chan error
	stop      <-chan struct{}
	streaming bool
}

type sessImpl struct {
	t     transport.Transport
	cfg   *Config
	trace *Trace

	mu       sync.Mutex
	state    State
	nextID   uint64
	waiters  map[uint64]*waiterEntry
	helloCh  chan *tree.Node
	hello    *tree.Node
	fatalErr error

	closedCh chan struct{}
}

// Open constructs a Session atop an already-connected transport and starts
// its background read loop; no hello is sent until Hello is called.
func Open(ctx context.Context, t transport.Transport, cfg *Config) (Session, error) {
	s := &sessImpl{
		t:        t,
		cfg:      cfg.withDefaults(),
		trace:    ContextTrace(ctx),
		state:    StateConnecting,
		nextID:   1,
		waiters:  make(map[uint64]*waiterEntry),
		closedCh: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *sessImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *sessImpl) Hello(ctx context.Context) (*tree.Node, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		h := s.hello
		s.mu.Unlock()
		return h, nil
	case StateClosed:
		err := s.fatalErr
		s.mu.Unlock()
		return nil, closedErr(err)
	}
	ch := make(chan *tree.Node, 1)
	s.helloCh = ch
	s.mu.Unlock()

	s.trace.HandshakeStart()

	clientHello := buildClientHello()
	xmlBytes, err := codec.Encode(clientHello)
	if err != nil {
		werr := ncerrors.Wrap(ncerrors.KindProtocol, err, "failed to encode client hello")
		s.trace.HandshakeDone(werr)
		return nil, werr
	}
	s.trace.Send(0, string(xmlBytes))
	if _, err := s.t.Write(append(xmlBytes, []byte(framer.Delimiter)...)); err != nil {
		werr := ncerrors.FatalWrap(ncerrors.KindTransport, err, "failed to write client hello")
		s.fail(werr)
		s.trace.HandshakeDone(werr)
		return nil, werr
	}

	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	select {
	case hello := <-ch:
		body := hello.Get("hello")
		if body.Get("session-id") == nil {
			err := ncerrors.Fatal(ncerrors.KindProtocol, "server hello missing session-id")
			s.fail(err)
			s.trace.HandshakeDone(err)
			return nil, err
		}
		s.mu.Lock()
		s.hello = hello
		s.state = StateReady
		s.mu.Unlock()
		s.trace.HandshakeDone(nil)
		return hello, nil
	case <-hctx.Done():
		err := ncerrors.Fatal(ncerrors.KindTimeout, "timed out waiting for server hello")
		s.fail(err)
		s.trace.HandshakeDone(err)
		return nil, err
	case <-s.closedCh:
		s.mu.Lock()
		err := closedErr(s.fatalErr)
		s.mu.Unlock()
		s.trace.HandshakeDone(err)
		return nil, err
	}
}

func buildClientHello() *tree.Node {
	caps := tree.NewMapping()
	caps.Set("capability", tree.NewList(
		tree.NewString(baseNamespace),
		tree.NewString("urn:ietf:params:netconf:base:1.0"),
	))
	hello := tree.NewMapping()
	hello.Set("capabilities", caps)
	root := tree.NewMapping()
	root.Set("hello", hello)
	return root
}

func (s *sessImpl) Send(ctx context.Context, body *tree.Node, stop <-chan struct{}) (*async.Sequence[*Envelope], error) {
	return async.New(func(ctx context.Context, emit func(*Envelope) bool, cancel <-chan struct{}) error {
		s.mu.Lock()
		if s.state == StateClosed {
			err := closedErr(s.fatalErr)
			s.mu.Unlock()
			return err
		}
		id := s.nextID
		s.nextID++
		w := &waiterEntry{id: id, ch: make(chan *Envelope, 1), errCh: make(chan error, 1), stop: stop}
		s.waiters[id] = w
		s.mu.Unlock()

		rpcNode := s.wrapRPC(body, id)
		xmlBytes, err := codec.Encode(rpcNode)
		if err != nil {
			s.removeWaiter(id)
			return ncerrors.Wrap(ncerrors.KindProtocol, err, "failed to encode request")
		}

		s.trace.Send(id, string(xmlBytes))
		if _, err := s.t.Write(append(xmlBytes, []byte(framer.Delimiter)...)); err != nil {
			s.removeWaiter(id)
			werr := ncerrors.FatalWrap(ncerrors.KindTransport, err, "failed to write request")
			s.fail(werr)
			return werr
		}

		fctx, fcancel := context.WithTimeout(ctx, s.cfg.FirstReplyTimeout)
		defer fcancel()

		select {
		case env := <-w.ch:
			if !emit(env) {
				s.removeWaiter(id)
				return nil
			}
			if stop == nil {
				s.removeWaiter(id)
				return nil
			}
			s.mu.Lock()
			w.streaming = true
			s.mu.Unlock()
		case err := <-w.errCh:
			s.removeWaiter(id)
			return err
		case <-fctx.Done():
			s.removeWaiter(id)
			return ncerrors.New(ncerrors.KindTimeout, "timed out waiting for rpc-reply")
		case <-cancel:
			s.removeWaiter(id)
			return nil
		case <-stop:
			s.removeWaiter(id)
			return nil
		}

		for {
			select {
			case env := <-w.ch:
				if !emit(env) {
					s.removeWaiter(id)
					return nil
				}
			case err := <-w.errCh:
				s.removeWaiter(id)
				return err
			case <-cancel:
				s.removeWaiter(id)
				return nil
			case <-stop:
				s.removeWaiter(id)
				return nil
			}
		}
	}), nil
}

func (s *sessImpl) wrapRPC(body *tree.Node, id uint64) *tree.Node {
	body.SetAttr("xmlns", baseNamespace)
	body.SetAttr("message-id", strconv.FormatUint(id, 10))
	root := tree.NewMapping()
	root.Set("rpc", body)
	return root
}

func (s *sessImpl) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CloseTimeout)
	defer cancel()

	closeBody := tree.NewMapping()
	closeBody.Set("close-session", tree.NewNull())
	if seq, err := s.Send(cctx, closeBody, nil); err == nil {
		_, _ = seq.Collect(cctx)
	}

	s.fail(ncerrors.New(ncerrors.KindTransport, "SSH session closed"))
	return nil
}

// fail transitions the session to closed (idempotently), resolves every
// pending waiter and any in-flight Hello with err, and tears down the
// transport.
func (s *sessImpl) fail(err *ncerrors.Error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.fatalErr = err
	waiters := s.waiters
	s.waiters = map[uint64]*waiterEntry{}
	s.helloCh = nil
	s.mu.Unlock()

	for _, w := range waiters {
		select {
		case w.errCh <- err:
		default:
		}
	}
	close(s.closedCh)
	_ = s.t.Close()
	s.trace.Closed(err)
}

func closedErr(cause error) error {
	if cause != nil {
		return cause
	}
	return ncerrors.New(ncerrors.KindTransport, "session is closed")
}

func (s *sessImpl) removeWaiter(id uint64) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

func (s *sessImpl) readLoop() {
	fr := framer.New()
	buf := make([]byte, 4096)
	for {
		n, err := s.t.Read(buf)
		if n > 0 {
			if aerr := fr.Append(buf[:n]); aerr != nil {
				s.fail(ncerrors.Fatal(ncerrors.KindFraming, "framer buffer exceeded 50MiB"))
				return
			}
			for {
				msg, ok := fr.Extract()
				if !ok {
					break
				}
				s.handleMessage(msg)
			}
		}
		if err != nil {
			if s.State() == StateClosed {
				return
			}
			if errors.Is(err, io.EOF) {
				s.fail(ncerrors.Fatal(ncerrors.KindTransport, "transport closed by peer"))
			} else {
				s.fail(ncerrors.FatalWrap(ncerrors.KindTransport, err, "transport read failed"))
			}
			return
		}
	}
}

func (s *sessImpl) handleMessage(raw []byte) {
	s.trace.Recv(string(raw))

	root, err := codec.Decode(raw, s.cfg.IgnoreAttributes)
	if err != nil {
		s.mu.Lock()
		awaitingHello := s.helloCh != nil
		s.mu.Unlock()
		if awaitingHello {
			s.fail(ncerrors.Fatal(ncerrors.KindProtocol, "malformed XML during handshake"))
		} else {
			s.trace.Error(errors.Wrap(err, "discarding malformed message"))
		}
		return
	}

	kind, body := codec.Classify(root)
	switch kind {
	case codec.KindHello:
		s.deliverHello(root, body)
	case codec.KindRPCReply:
		s.routeReply(raw, root, body)
	case codec.KindNotification:
		s.broadcastNotification(raw, root)
	default:
		s.trace.Error(errors.New("discarding unrecognized top-level message"))
	}
}

func (s *sessImpl) deliverHello(root, body *tree.Node) {
	s.mu.Lock()
	ch := s.helloCh
	s.helloCh = nil
	s.mu.Unlock()
	if ch == nil {
		return
	}
	_ = body
	select {
	case ch <- root:
	default:
	}
}

func (s *sessImpl) routeReply(raw []byte, root, body *tree.Node) {
	idNode := body.Get(tree.AttrsKey).Get("message-id")
	id, ok := numericID(idNode)
	if !ok {
		s.trace.Error(errors.New("discarding rpc-reply with no message-id"))
		return
	}

	s.mu.Lock()
	w := s.waiters[id]
	s.mu.Unlock()
	if w == nil {
		s.trace.Error(fmt.Errorf("discarding unmatched message-id %d", id))
		return
	}

	if rpcErr := codec.ExtractError(body); rpcErr != nil {
		select {
		case w.errCh <- rpcErr:
		default:
		}
		return
	}

	env := &Envelope{XML: string(raw), Result: root}
	select {
	case w.ch <- env:
	default:
	}
}

func (s *sessImpl) broadcastNotification(raw []byte, root *tree.Node) {
	s.mu.Lock()
	var targets []*waiterEntry
	for _, w := range s.waiters {
		if w.streaming {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		s.trace.NotificationDropped("no active subscription")
		return
	}

	env := &Envelope{XML: string(raw), Result: root}
	for _, w := range targets {
		select {
		case w.ch <- env:
			s.trace.NotificationReceived(w.id)
		default:
			s.trace.NotificationDropped("receiver channel busy")
		}
	}
}

func numericID(n *tree.Node) (uint64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Kind {
	case tree.KindNumber:
		if n.Num < 0 {
			return 0, false
		}
		return uint64(n.Num), true
	case tree.KindString:
		v, err := strconv.ParseUint(n.Str, 10, 64)
		return v, err == nil
	default:
		return 0, false
	}
}
