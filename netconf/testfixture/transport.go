package testfixture

import (
	"net"

	"github.com/xlnconf/netconf/netconf/transport"
)

// clientTransport adapts one end of a net.Pipe to transport.Transport, the
// same small shim netconf/session's own tests use, factored out here so
// netconf/client's tests can share it.
type clientTransport struct {
	net.Conn
	closed chan struct{}
}

func (t *clientTransport) Closed() <-chan struct{} { return t.closed }

func (t *clientTransport) Close() error {
	err := t.Conn.Close()
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return err
}

// NewTransportPair returns a ready transport.Transport wrapping the client
// side of an in-process pipe, and the Peer driving its far end. Pass the
// transport straight to client.NewFromTransport to exercise the Client API
// without a real SSH server.
func NewTransportPair(helloXML string) (transport.Transport, *Peer) {
	conn, peer := New(helloXML)
	return &clientTransport{Conn: conn, closed: make(chan struct{})}, peer
}
