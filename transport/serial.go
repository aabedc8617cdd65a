// Package transport implements the device transport over a serial port.
package transport

import (
	"bytes"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/pithecene-io/picoup/repl"
)

// DefaultBaud is the default serial baud rate.
const DefaultBaud = 115200

// DefaultTimeout is the default bound on a single read.
const DefaultTimeout = 2 * time.Second

// pollTimeout approximates a non-blocking read when probing for buffered
// bytes. The OS driver buffers input, so anything already received is
// returned immediately.
const pollTimeout = time.Millisecond

// Config configures a serial transport.
type Config struct {
	// Device is the serial device path (e.g. /dev/ttyACM0).
	Device string
	// Baud is the line rate (default: 115200).
	Baud int
	// Timeout bounds each read; a starved read returns short, not an error.
	Timeout time.Duration
}

// SerialTransport adapts a serial port to the repl.Transport contract.
// Not safe for concurrent use; ownership belongs to one REPL client.
type SerialTransport struct {
	port    serial.Port
	timeout time.Duration
	// pending holds read-ahead bytes consumed by availability probes but
	// not yet handed to the caller.
	pending []byte
}

// Open opens the serial device.
func Open(cfg Config) (*SerialTransport, error) {
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	port, err := serial.Open(cfg.Device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", cfg.Device, err)
	}
	return &SerialTransport{port: port, timeout: timeout}, nil
}

// Write sends p and flushes the output buffer.
func (t *SerialTransport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, err
	}
	if err := t.port.Drain(); err != nil {
		return n, err
	}
	return n, nil
}

// Read returns up to n bytes, short when the timeout expires first.
func (t *SerialTransport) Read(n int) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	for len(t.pending) < n {
		got, err := t.fill(deadline)
		if err != nil {
			return nil, err
		}
		if !got {
			break
		}
	}
	if n > len(t.pending) {
		n = len(t.pending)
	}
	return t.take(n), nil
}

// ReadUntil reads until term arrives or the timeout is exhausted.
func (t *SerialTransport) ReadUntil(term byte) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		if i := bytes.IndexByte(t.pending, term); i >= 0 {
			return t.take(i + 1), nil
		}
		got, err := t.fill(deadline)
		if err != nil {
			return nil, err
		}
		if !got {
			return t.take(len(t.pending)), nil
		}
	}
}

// BytesAvailable reports how many bytes can be read without blocking.
func (t *SerialTransport) BytesAvailable() (int, error) {
	if len(t.pending) > 0 {
		return len(t.pending), nil
	}
	if err := t.port.SetReadTimeout(pollTimeout); err != nil {
		return 0, err
	}
	buf := make([]byte, 256)
	n, err := t.port.Read(buf)
	if err != nil {
		return 0, err
	}
	t.pending = append(t.pending, buf[:n]...)
	return len(t.pending), nil
}

// Close releases the port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// fill performs one bounded read into the pending buffer.
// Returns false when the deadline passed without new bytes.
func (t *SerialTransport) fill(deadline time.Time) (bool, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false, nil
	}
	if err := t.port.SetReadTimeout(remaining); err != nil {
		return false, err
	}
	buf := make([]byte, 4096)
	n, err := t.port.Read(buf)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	t.pending = append(t.pending, buf[:n]...)
	return true, nil
}

// take removes and returns the first n pending bytes.
func (t *SerialTransport) take(n int) []byte {
	out := make([]byte, n)
	copy(out, t.pending)
	t.pending = t.pending[n:]
	return out
}

// Verify SerialTransport implements the transport contract.
var _ repl.Transport = (*SerialTransport)(nil)
