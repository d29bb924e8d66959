// Package framer implements the NETCONF end-of-message transport framing
// defined by RFC 6242 section 4.3: messages are separated on the wire by
// the literal delimiter "]]>]]>". Only this delimiter form is supported
// (NETCONF 1.1 chunked framing is out of scope); see the teacher's fuller
// rfc6242 decoder/encoder pair (damianoneill-net v1) for the chunked
// variant this package deliberately does not carry.
//
// Framer is purely synchronous and holds no reference to a transport: it
// is handed bytes by a caller and yields complete messages.
package framer

import (
	"bytes"

	"github.com/pkg/errors"
)

// Delimiter is the literal byte sequence that terminates every NETCONF
// message under end-of-message framing.
const Delimiter = "]]>]]>"

// MaxBufferedBytes bounds the framer's total buffered, unextracted input.
// Exceeding it is a fatal error for the owning session (§3 invariant).
const MaxBufferedBytes = 50 * 1024 * 1024

// ErrOverflow is returned by Append when accepting the supplied bytes
// would exceed MaxBufferedBytes. The delimiter's own bytes count toward
// the ceiling like any other byte (per the spec's disambiguation of the
// source's unspecified boundary behaviour).
var ErrOverflow = errors.New("framer: buffered input exceeds 50MiB limit")

// Framer buffers incoming bytes and yields complete messages split on
// Delimiter.
type Framer struct {
	buf []byte
}

// New returns an empty Framer.
func New() *Framer {
	return &Framer{}
}

// Append adds b to the buffer. It returns ErrOverflow (and leaves the
// buffer unchanged) if doing so would exceed MaxBufferedBytes.
func (f *Framer) Append(b []byte) error {
	if len(f.buf)+len(b) > MaxBufferedBytes {
		return ErrOverflow
	}
	f.buf = append(f.buf, b...)
	return nil
}

// Extract removes and returns the first complete message from the buffer,
// i.e. everything up to (but excluding) the first Delimiter, also
// consuming the delimiter itself. It reports ok=false if no complete
// message is currently buffered.
func (f *Framer) Extract() (msg []byte, ok bool) {
	idx := bytes.Index(f.buf, []byte(Delimiter))
	if idx < 0 {
		return nil, false
	}

	msg = make([]byte, idx)
	copy(msg, f.buf[:idx])

	rest := f.buf[idx+len(Delimiter):]
	f.buf = append([]byte(nil), rest...)

	return msg, true
}

// Clear discards all buffered, unextracted bytes.
func (f *Framer) Clear() {
	f.buf = nil
}

// Buffered returns the number of bytes currently held, unextracted.
func (f *Framer) Buffered() int {
	return len(f.buf)
}
