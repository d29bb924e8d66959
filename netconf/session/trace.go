package session

import "context"

// Trace is a set of optional hooks a caller can install to observe a
// Session's handshake, request/reply, and notification traffic, mirroring
// the context-installed hook pattern of transport.Trace.
type Trace struct {
	HandshakeStart func()
	HandshakeDone  func(err error)

	Send func(messageID uint64, xml string)
	Recv func(xml string)

	NotificationReceived func(messageID uint64)
	NotificationDropped  func(reason string)

	Error  func(err error)
	Closed func(err error)
}

func (t *Trace) fillDefaults() *Trace {
	if t == nil {
		t = &Trace{}
	}
	merged := *t
	if merged.HandshakeStart == nil {
		merged.HandshakeStart = func() {}
	}
	if merged.HandshakeDone == nil {
		merged.HandshakeDone = func(error) {}
	}
	if merged.Send == nil {
		merged.Send = func(uint64, string) {}
	}
	if merged.Recv == nil {
		merged.Recv = func(string) {}
	}
	if merged.NotificationReceived == nil {
		merged.NotificationReceived = func(uint64) {}
	}
	if merged.NotificationDropped == nil {
		merged.NotificationDropped = func(string) {}
	}
	if merged.Error == nil {
		merged.Error = func(error) {}
	}
	if merged.Closed == nil {
		merged.Closed = func(error) {}
	}
	return &merged
}

type traceKey struct{}

// WithTrace installs t into ctx so a Session opened with that context reports
// through it.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// ContextTrace retrieves a fully-populated Trace from ctx, falling back to a
// no-op Trace when none was installed.
func ContextTrace(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t.fillDefaults()
}
