package session

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/xlnconf/netconf/netconf/framer"
	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/netconf/transport"
	"github.com/xlnconf/netconf/tree"
)

func getRequestBody() *tree.Node {
	body := tree.NewMapping()
	body.Set("get", tree.NewNull())
	return body
}

// fakeTransport adapts a net.Conn (one end of a net.Pipe) to
// transport.Transport for tests, without any real SSH connection.
type fakeTransport struct {
	net.Conn
	closed chan struct{}
}

func (f *fakeTransport) Closed() <-chan struct{} { return f.closed }

func (f *fakeTransport) Close() error {
	err := f.Conn.Close()
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return err
}

func newFakePair() (transport.Transport, net.Conn) {
	a, b := net.Pipe()
	return &fakeTransport{Conn: a, closed: make(chan struct{})}, b
}

// runFakeServer drives the far end of the pipe: every complete framed
// message read is passed to handle, whose non-nil return is written back
// (with the delimiter appended) as the server's reply.
func runFakeServer(conn net.Conn, handle func(msg []byte) []byte) {
	go func() {
		fr := framer.New()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				_ = fr.Append(buf[:n])
				for {
					msg, ok := fr.Extract()
					if !ok {
						break
					}
					if reply := handle(msg); reply != nil {
						_, _ = conn.Write(append(reply, []byte(framer.Delimiter)...))
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

const canonicalServerHello = `<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">` +
	`<capabilities>` +
	`<capability>urn:ietf:params:xml:ns:netconf:base:1.0</capability>` +
	`<capability>urn:ietf:params:netconf:base:1.0</capability>` +
	`</capabilities>` +
	`<session-id>4</session-id>` +
	`</hello>`

func TestHelloHandshakeTransitionsToReady(t *testing.T) {
	tr, conn := newFakePair()
	defer conn.Close()

	runFakeServer(conn, func(msg []byte) []byte {
		if strings.Contains(string(msg), "<hello") {
			return []byte(canonicalServerHello)
		}
		return nil
	})

	sess, err := Open(context.Background(), tr, nil)
	assert.NoError(t, err)

	hello, err := sess.Hello(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, float64(4), hello.Get("hello").Get("session-id").Num)
	assert.Equal(t, StateReady, sess.State())
}

func TestSendMatchesReplyByMessageID(t *testing.T) {
	tr, conn := newFakePair()
	defer conn.Close()

	runFakeServer(conn, func(msg []byte) []byte {
		s := string(msg)
		switch {
		case strings.Contains(s, "<hello"):
			return []byte(canonicalServerHello)
		case strings.Contains(s, `message-id="1"`):
			return []byte(`<rpc-reply message-id="1"><data><config>test</config></data></rpc-reply>`)
		default:
			return nil
		}
	})

	sess, err := Open(context.Background(), tr, nil)
	assert.NoError(t, err)
	_, err = sess.Hello(context.Background())
	assert.NoError(t, err)

	body := getRequestBody()
	seq, err := sess.Send(context.Background(), body, nil)
	assert.NoError(t, err)

	results, err := seq.Collect(context.Background())
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "test", results[0].Result.Get("rpc-reply").Get("data").Get("config").Str)
}

func TestRPCErrorReplySurfacesAsFailure(t *testing.T) {
	tr, conn := newFakePair()
	defer conn.Close()

	runFakeServer(conn, func(msg []byte) []byte {
		s := string(msg)
		switch {
		case strings.Contains(s, "<hello"):
			return []byte(canonicalServerHello)
		case strings.Contains(s, `message-id="1"`):
			return []byte(`<rpc-reply message-id="1"><rpc-error>` +
				`<error-type>protocol</error-type>` +
				`<error-tag>operation-failed</error-tag>` +
				`<error-severity>error</error-severity>` +
				`<error-message>Invalid operation</error-message>` +
				`</rpc-error></rpc-reply>`)
		default:
			return nil
		}
	})

	sess, err := Open(context.Background(), tr, nil)
	assert.NoError(t, err)
	_, err = sess.Hello(context.Background())
	assert.NoError(t, err)

	body := getRequestBody()
	seq, err := sess.Send(context.Background(), body, nil)
	assert.NoError(t, err)

	_, err = seq.Collect(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid operation")
}

func TestHandshakeFailsWhenTransportDiesMidHandshake(t *testing.T) {
	tr, conn := newFakePair()

	runFakeServer(conn, func(msg []byte) []byte {
		conn.Close()
		return nil
	})

	sess, err := Open(context.Background(), tr, nil)
	assert.NoError(t, err)

	_, err = sess.Hello(context.Background())
	assert.Error(t, err)
	var ncErr *ncerrors.Error
	assert.ErrorAs(t, err, &ncErr)
	assert.Equal(t, ncerrors.KindTransport, ncErr.Kind)
	assert.Equal(t, StateClosed, sess.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	tr, conn := newFakePair()
	defer conn.Close()

	runFakeServer(conn, func(msg []byte) []byte {
		if strings.Contains(string(msg), "<hello") {
			return []byte(canonicalServerHello)
		}
		if strings.Contains(string(msg), "close-session") {
			return []byte(`<rpc-reply message-id="1"><ok/></rpc-reply>`)
		}
		return nil
	})

	sess, err := Open(context.Background(), tr, nil)
	assert.NoError(t, err)
	_, err = sess.Hello(context.Background())
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, sess.Close(ctx))
	assert.NoError(t, sess.Close(ctx))
	assert.Equal(t, StateClosed, sess.State())
}
