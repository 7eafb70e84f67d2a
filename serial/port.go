// Package serial adapts a physical Z-Wave controller stick, reachable as
// a byte-oriented serial device, to the zwave.Transport interface the
// driver core consumes. The core treats the transport as an opaque byte
// pipe; this package is the one piece of the system that actually knows
// about baud rates and device files.
package serial

import (
	"io"
	"time"

	goserial "github.com/tarm/serial"
)

// DefaultBaud is the Z-Wave serial API's standard line rate: 115200 8N1.
const DefaultBaud = 115200

// DefaultReadTimeout bounds how long a Read blocks with no bytes
// available, so the driver thread's read loop can still observe port
// closure and shutdown signals in a timely fashion.
const DefaultReadTimeout = 250 * time.Millisecond

// Port wraps a physical serial device as a read/write/close byte pipe.
type Port struct {
	name string
	cfg  *goserial.Config
	conn io.ReadWriteCloser

	closed bool
}

// Options configures Open.
type Options struct {
	// Baud defaults to DefaultBaud when zero.
	Baud int
	// ReadTimeout defaults to DefaultReadTimeout when zero.
	ReadTimeout time.Duration
}

// Open opens the named serial device (e.g. "/dev/ttyACM0" or "COM3") for
// exclusive use by one driver.
func Open(name string, opts Options) (*Port, error) {
	if opts.Baud == 0 {
		opts.Baud = DefaultBaud
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	cfg := &goserial.Config{
		Name:        name,
		Baud:        opts.Baud,
		ReadTimeout: opts.ReadTimeout,
	}
	conn, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &Port{name: name, cfg: cfg, conn: conn}, nil
}

// Read satisfies io.Reader. A read timeout with zero bytes read surfaces
// as io.EOF-free zero-length read per tarm/serial's convention; the
// driver's Codec loop treats that as "try again" rather than an error.
func (p *Port) Read(b []byte) (int, error) {
	return p.conn.Read(b)
}

// Write satisfies io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

// Close releases the underlying device handle. Safe to call more than
// once.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// Name returns the device path this Port was opened against.
func (p *Port) Name() string { return p.name }
