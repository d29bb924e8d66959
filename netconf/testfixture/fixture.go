// Package testfixture is an in-process fake NETCONF peer used by this
// module's own tests (netconf/client): it implements
// transport.Transport directly over net.Pipe instead of driving a real SSH
// server, since the transport's public interface is already the right seam
// to fake at (no host-key generation, no real network I/O).
//
// Grounded on the teacher's netconf/testserver package (TestNCServer's
// per-session request-handler chain, WithRequestHandler/WithCapabilities),
// adapted here from a real SSH+subsystem server to a bare net.Pipe peer.
package testfixture

import (
	"net"
	"sync"

	"github.com/xlnconf/netconf/netconf/framer"
)

// RequestHandler inspects a single raw framed request (the hello, or any
// <rpc>) and, if it recognizes it, returns the raw reply body to write
// back (without the trailing delimiter, which Peer appends) and handled
// true. Handlers are tried in registration order; the first to claim a
// request wins.
type RequestHandler func(msg []byte) (reply []byte, handled bool)

// Peer is the far end of an in-process NETCONF conversation: a
// transport.Transport-shaped net.Conn is handed to the client under test,
// while Peer reads and responds on the other end of the pipe.
type Peer struct {
	conn     net.Conn
	helloXML string

	mu       sync.Mutex
	handlers []RequestHandler
}

// New returns a connected (clientConn, peer) pair. clientConn satisfies
// transport.Transport once wrapped as NewTransportPair does; helloXML
// is the server hello Peer sends in reply to the client's own hello.
func New(helloXML string) (net.Conn, *Peer) {
	a, b := net.Pipe()
	return a, &Peer{conn: b, helloXML: helloXML}
}

// WithRequestHandler registers an additional handler, tried after any
// already registered, and returns p for chaining.
func (p *Peer) WithRequestHandler(h RequestHandler) *Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
	return p
}

// Serve starts the peer's read loop in its own goroutine: the first framed
// message it receives is always answered with helloXML (a real client
// never sends an RPC before the handshake completes, per §4.4); every
// subsequent message is offered to the registered handlers in order.
// Serve returns immediately; the loop runs until the pipe closes.
func (p *Peer) Serve() {
	go func() {
		fr := framer.New()
		buf := make([]byte, 4096)
		helloSent := false
		for {
			n, err := p.conn.Read(buf)
			if n > 0 {
				if aerr := fr.Append(buf[:n]); aerr != nil {
					return
				}
				for {
					msg, ok := fr.Extract()
					if !ok {
						break
					}
					if !helloSent {
						helloSent = true
						p.write([]byte(p.helloXML))
						continue
					}
					p.dispatch(msg)
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

func (p *Peer) dispatch(msg []byte) {
	p.mu.Lock()
	handlers := append([]RequestHandler(nil), p.handlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		if reply, handled := h(msg); handled {
			if reply != nil {
				p.write(reply)
			}
			return
		}
	}
}

func (p *Peer) write(msg []byte) {
	_, _ = p.conn.Write(append(append([]byte(nil), msg...), []byte(framer.Delimiter)...))
}

// Push writes an unsolicited message (typically a <notification>) to the
// client outside the request/reply handler chain, for subscription tests.
func (p *Peer) Push(msg []byte) {
	p.write(msg)
}

// Close closes the peer's end of the pipe.
func (p *Peer) Close() error {
	return p.conn.Close()
}
