// Package transport establishes the SSH connection and opens the "netconf"
// subsystem channel that carries the NETCONF protocol, per §4.2. It neither
// frames nor parses the payload; it is a pure byte pipe, grounded closely on
// the teacher's netconf/client/transport.go.
package transport

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/xlnconf/netconf/netconf/ncerrors"
)

// ReadyTimeout is the single SSH ready-timeout that applies to connect +
// subsystem-open, per §4.2/§5.
const ReadyTimeout = 20 * time.Second

// Transport is a duplex byte channel to a NETCONF server. Close is
// idempotent-safe to call once.
type Transport interface {
	io.ReadWriteCloser
	// Closed yields once the transport has closed, for any reason.
	Closed() <-chan struct{}
}

// Dialer abstracts SSH client construction, so tests can substitute a fake
// without a live network connection; mirrors the teacher's
// SSHClientFactory/RealDialer split (rpcsessionfactory.go).
type Dialer interface {
	Dial(ctx context.Context) (*ssh.Client, error)
	Close(*ssh.Client) error
}

type realDialer struct {
	target string
	config *ssh.ClientConfig
}

// NewDialer returns a Dialer that opens a real TCP+SSH connection to
// target using config.
func NewDialer(target string, config *ssh.ClientConfig) Dialer {
	return &realDialer{target: target, config: config}
}

func (d *realDialer) Dial(ctx context.Context) (*ssh.Client, error) {
	return ssh.Dial("tcp", d.target, d.config)
}

func (d *realDialer) Close(cli *ssh.Client) error {
	if cli == nil {
		return nil
	}
	return cli.Close()
}

type impl struct {
	reader      io.Reader
	writeCloser io.WriteCloser
	sshSession  *ssh.Session
	sshClient   *ssh.Client
	trace       *Trace
	target      string
	dialer      Dialer
	closed      chan struct{}
}

// Dial opens an SSH connection to target via dialer, requests the
// "netconf" subsystem, and returns the resulting duplex channel. The
// ReadyTimeout deadline covers both steps; expiry surfaces as a fatal
// ncerrors.Error of KindTimeout.
func Dial(ctx context.Context, dialer Dialer, target string) (Transport, error) {
	trace := ContextTrace(ctx)

	trace.ConnectStart(target)

	ctx, cancel := context.WithTimeout(ctx, ReadyTimeout)
	defer cancel()

	type result struct {
		t   Transport
		err error
	}
	ch := make(chan result, 1)

	begin := time.Now()
	go func() {
		t, err := dialAndOpenSubsystem(ctx, dialer, target, trace)
		ch <- result{t, err}
	}()

	select {
	case r := <-ch:
		trace.ConnectDone(target, r.err, time.Since(begin))
		if r.err != nil {
			return nil, ncerrors.FatalWrap(ncerrors.KindTransport, r.err, "failed to establish netconf transport")
		}
		return r.t, nil
	case <-ctx.Done():
		trace.Timeout(target)
		return nil, ncerrors.Fatal(ncerrors.KindTimeout, "timed out establishing netconf transport")
	}
}

func dialAndOpenSubsystem(ctx context.Context, dialer Dialer, target string, trace *Trace) (rt Transport, err error) {
	im := &impl{target: target, dialer: dialer, trace: trace, closed: make(chan struct{})}

	defer func() {
		if err != nil {
			_ = dialer.Close(im.sshClient)
			if im.sshSession != nil {
				_ = im.sshSession.Close()
			}
		}
	}()

	if im.sshClient, err = dialer.Dial(ctx); err != nil {
		return nil, errors.Wrap(err, "ssh dial failed")
	}

	if im.sshSession, err = im.sshClient.NewSession(); err != nil {
		return nil, errors.Wrap(err, "failed to open ssh session")
	}

	if err = im.sshSession.RequestSubsystem("netconf"); err != nil {
		return nil, errors.Wrap(err, "failed to request netconf subsystem")
	}

	if im.reader, err = im.sshSession.StdoutPipe(); err != nil {
		return nil, errors.Wrap(err, "failed to open stdout pipe")
	}

	if im.writeCloser, err = im.sshSession.StdinPipe(); err != nil {
		return nil, errors.Wrap(err, "failed to open stdin pipe")
	}

	im.injectTraceReader()
	im.injectTraceWriter()

	return im, nil
}

func (t *impl) Read(p []byte) (int, error) {
	return t.reader.Read(p)
}

func (t *impl) Write(p []byte) (int, error) {
	return t.writeCloser.Write(p)
}

func (t *impl) Closed() <-chan struct{} {
	return t.closed
}

// Close closes all session resources in order: stdin pipe, SSH session,
// SSH client, and signals Closed(). Errors are reported with priority
// matching that order.
func (t *impl) Close() (err error) {
	defer func() {
		select {
		case <-t.closed:
		default:
			close(t.closed)
		}
		t.trace.Closed(t.target, err)
	}()

	var writeCloseErr, sessionCloseErr error

	if t.writeCloser != nil {
		writeCloseErr = t.writeCloser.Close()
	}
	if t.sshSession != nil {
		sessionCloseErr = t.sshSession.Close()
	}

	err = t.dialer.Close(t.sshClient)
	if err == nil {
		err = writeCloseErr
	}
	if err == nil {
		err = sessionCloseErr
	}
	return err
}

type traceReader struct {
	r     io.Reader
	trace *Trace
}

func (t *impl) injectTraceReader() {
	t.reader = &traceReader{r: t.reader, trace: t.trace}
}

func (tr *traceReader) Read(p []byte) (n int, err error) {
	tr.trace.ReadStart(p)
	begin := time.Now()
	n, err = tr.r.Read(p)
	tr.trace.ReadDone(p, n, err, time.Since(begin))
	return n, err
}

type traceWriter struct {
	w     io.WriteCloser
	trace *Trace
}

func (t *impl) injectTraceWriter() {
	t.writeCloser = &traceWriter{w: t.writeCloser, trace: t.trace}
}

func (tw *traceWriter) Write(p []byte) (n int, err error) {
	tw.trace.WriteStart(p)
	begin := time.Now()
	n, err = tw.w.Write(p)
	tw.trace.WriteDone(p, n, err, time.Since(begin))
	return n, err
}

func (tw *traceWriter) Close() error {
	return tw.w.Close()
}
