package repl

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

// deviceState tracks which input mode the fake firmware is in.
type deviceState int

const (
	stateFriendly deviceState = iota
	stateRaw
	statePaste
)

var errLinkSevered = errors.New("serial link severed")

// fakeDevice emulates MicroPython firmware on the other end of the wire.
// Bytes written by the client drive a small state machine that queues the
// firmware's replies for the client to read back.
type fakeDevice struct {
	// behavior knobs
	supportsPaste bool
	pasteDisabled bool   // negotiation recognized, feature off
	window        uint16 // raw-paste window size
	output        string // program output for the next execution
	exception     string // exception text for the next execution
	silent        bool   // never present the raw prompt
	badAck        []byte // overrides the fallback "OK" acknowledgement
	dieOnExec     bool   // sever the link once code is received
	truncated     bool   // emit output without result terminators
	abortAfter    int    // abort the paste transfer after n payload bytes
	grantByte     byte   // signal byte used for credit grants
	onExec        func() // invoked when execution starts

	// observable state
	state        deviceState
	negotiate    int // trigram progress: 0x05, 'A', 0x01
	pending      []byte
	code         []byte
	dead         bool
	aborted      bool
	allowed      int // total payload bytes the host has credit for
	received     int // total payload bytes actually received
	overrun      bool
	negotiations int
	writes       []byte // every byte the client ever wrote
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		supportsPaste: true,
		window:        32,
		grantByte:     EnterRaw.Byte(),
	}
}

func (d *fakeDevice) queue(p ...byte) {
	d.pending = append(d.pending, p...)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.dead {
		return 0, errLinkSevered
	}
	d.writes = append(d.writes, p...)
	for _, b := range p {
		d.consume(b)
	}
	return len(p), nil
}

func (d *fakeDevice) consume(b byte) {
	if d.state == statePaste {
		d.consumePaste(b)
		return
	}

	switch b {
	case Interrupt.Byte():
		// nothing running

	case EnterRaw.Byte():
		if d.negotiate == 2 {
			d.finishNegotiation()
			return
		}
		if d.state == stateFriendly {
			d.state = stateRaw
			if !d.silent {
				d.queue([]byte("raw REPL; CTRL-B to exit\r\n>")...)
			}
		}

	case ExitRaw.Byte():
		d.state = stateFriendly
		d.negotiate = 0

	case RawPasteRequest.Byte():
		if d.state == stateRaw {
			d.negotiate = 1
		}

	case EndOfTransmission.Byte():
		if d.state == stateRaw {
			d.execute(false)
		}

	default:
		if b == 'A' && d.negotiate == 1 {
			d.negotiate = 2
			return
		}
		d.negotiate = 0
		if d.state == stateRaw {
			d.code = append(d.code, b)
		}
	}
}

func (d *fakeDevice) finishNegotiation() {
	d.negotiate = 0
	d.negotiations++
	switch {
	case d.pasteDisabled:
		d.queue('R', 0x00)
	case d.supportsPaste:
		size := make([]byte, 2)
		binary.LittleEndian.PutUint16(size, d.window)
		d.queue('R', 0x01)
		d.queue(size...)
		d.state = statePaste
		d.allowed = int(d.window)
		d.received = 0
		d.aborted = false
		d.code = nil
	default:
		// legacy firmware: the probe bytes vanish into the input buffer
	}
}

func (d *fakeDevice) consumePaste(b byte) {
	if b == EndOfTransmission.Byte() {
		if d.aborted {
			// host echoed the abort; transfer is over
			d.state = stateRaw
			return
		}
		d.execute(true)
		return
	}

	d.received++
	if d.received > d.allowed {
		d.overrun = true
	}
	d.code = append(d.code, b)

	if d.abortAfter > 0 && d.received >= d.abortAfter && !d.aborted {
		d.aborted = true
		d.queue(EndOfTransmission.Byte())
		return
	}
	if d.received == d.allowed {
		d.queue(d.grantByte)
		d.allowed += int(d.window)
	}
}

// execute queues the framed result of running the received code.
func (d *fakeDevice) execute(pasteAck bool) {
	d.state = stateRaw
	if d.dieOnExec {
		d.dead = true
		d.pending = nil
		return
	}
	if pasteAck {
		d.queue(EndOfTransmission.Byte())
	} else if d.badAck != nil {
		d.queue(d.badAck...)
	} else {
		d.queue([]byte("OK")...)
	}
	if d.onExec != nil {
		d.onExec()
	}
	if d.truncated {
		d.queue([]byte(d.output)...)
		return
	}
	d.queue([]byte(d.output + "\x04" + d.exception + "\x04")...)
}

func (d *fakeDevice) Read(n int) ([]byte, error) {
	if d.dead {
		return nil, errLinkSevered
	}
	if n > len(d.pending) {
		n = len(d.pending)
	}
	out := d.pending[:n]
	d.pending = d.pending[n:]
	return out, nil
}

func (d *fakeDevice) ReadUntil(term byte) ([]byte, error) {
	if d.dead {
		return nil, errLinkSevered
	}
	idx := bytes.IndexByte(d.pending, term)
	n := len(d.pending)
	if idx >= 0 {
		n = idx + 1
	}
	out := d.pending[:n]
	d.pending = d.pending[n:]
	return out, nil
}

func (d *fakeDevice) BytesAvailable() (int, error) {
	if d.dead {
		return 0, errLinkSevered
	}
	return len(d.pending), nil
}

func (d *fakeDevice) Close() error { return nil }

var _ Transport = (*fakeDevice)(nil)

func TestExec_RawPasteTransfer(t *testing.T) {
	device := newFakeDevice()
	device.window = 16
	device.output = "hello from the board\r\n"
	client := NewClient(device)

	code := bytes.Repeat([]byte("x = 1\n"), 20) // several windows worth

	result, err := client.Exec(context.Background(), string(code))
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Output != "hello from the board\r\n" {
		t.Errorf("Output = %q, want %q", result.Output, "hello from the board\r\n")
	}
	if result.Failed() {
		t.Errorf("Failed() = true, want false")
	}
	if !bytes.Equal(device.code, code) {
		t.Errorf("device received %d bytes, want %d", len(device.code), len(code))
	}
	if device.overrun {
		t.Error("client wrote beyond its granted credit")
	}
	if !client.RawPasteEnabled() {
		t.Error("RawPasteEnabled() = false after successful paste transfer")
	}
}

func TestExec_FallbackWhenUnrecognized(t *testing.T) {
	device := newFakeDevice()
	device.supportsPaste = false
	device.output = "ok\r\n"
	client := NewClient(device)

	result, err := client.Exec(context.Background(), "print('ok')")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Output != "ok\r\n" {
		t.Errorf("Output = %q, want %q", result.Output, "ok\r\n")
	}
	if client.RawPasteEnabled() {
		t.Error("RawPasteEnabled() = true after failed negotiation")
	}

	// The fallback decision is permanent for the client's lifetime.
	device.output = "again\r\n"
	if _, err := client.Exec(context.Background(), "print('again')"); err != nil {
		t.Fatalf("second Exec failed: %v", err)
	}
	if device.negotiations != 1 {
		t.Errorf("negotiations = %d, want 1", device.negotiations)
	}
}

func TestExec_FallbackWhenDisabled(t *testing.T) {
	device := newFakeDevice()
	device.pasteDisabled = true
	device.output = "ok\r\n"
	client := NewClient(device)

	result, err := client.Exec(context.Background(), "print('ok')")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Output != "ok\r\n" {
		t.Errorf("Output = %q, want %q", result.Output, "ok\r\n")
	}
	if client.RawPasteEnabled() {
		t.Error("RawPasteEnabled() = true after recognized-but-disabled reply")
	}
}

func TestExec_WithoutRawPasteOption(t *testing.T) {
	device := newFakeDevice()
	device.output = "ok\r\n"
	client := NewClient(device, WithoutRawPaste())

	if _, err := client.Exec(context.Background(), "print('ok')"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if device.negotiations != 0 {
		t.Errorf("negotiations = %d, want 0", device.negotiations)
	}
}

func TestExec_RemoteException(t *testing.T) {
	exception := "Traceback (most recent call last):\r\n  File \"<stdin>\", line 1\r\nNameError: name 'nope' isn't defined\r\n"
	device := newFakeDevice()
	device.exception = exception
	client := NewClient(device)

	result, err := client.Exec(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !result.Failed() {
		t.Fatal("Failed() = false, want true")
	}
	if result.Exception != exception {
		t.Errorf("Exception = %q, want %q", result.Exception, exception)
	}
}

func TestExecChecked_RemoteException(t *testing.T) {
	device := newFakeDevice()
	device.exception = "ValueError: bad value\r\n"
	client := NewClient(device)

	result, err := client.ExecChecked(context.Background(), "raise ValueError('bad value')")
	if err == nil {
		t.Fatal("ExecChecked succeeded, want *RemoteExecError")
	}
	var execErr *RemoteExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *RemoteExecError", err)
	}
	if execErr.Exception != "ValueError: bad value\r\n" {
		t.Errorf("Exception = %q, want %q", execErr.Exception, "ValueError: bad value\r\n")
	}
	// The result is still returned alongside the error.
	if result.Exception != execErr.Exception {
		t.Errorf("result.Exception = %q, want %q", result.Exception, execErr.Exception)
	}
}

func TestExec_EnterRawFailure(t *testing.T) {
	device := newFakeDevice()
	device.silent = true
	client := NewClient(device)

	_, err := client.Exec(context.Background(), "print('ok')")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error type = %T, want *ProtocolError", err)
	}
	if protoErr.Kind != KindEnterRaw {
		t.Errorf("Kind = %v, want %v", protoErr.Kind, KindEnterRaw)
	}
	// Raw mode is exited even when entry failed.
	if !bytes.Contains(device.writes, []byte{ExitRaw.Byte()}) {
		t.Error("exit-raw was never written after failed entry")
	}
}

func TestExec_FallbackBadAck(t *testing.T) {
	device := newFakeDevice()
	device.supportsPaste = false
	device.badAck = []byte("ER")
	client := NewClient(device)

	_, err := client.Exec(context.Background(), "print('ok')")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error type = %T, want *ProtocolError", err)
	}
	if protoErr.Kind != KindExecAck {
		t.Errorf("Kind = %v, want %v", protoErr.Kind, KindExecAck)
	}
}

func TestExec_CancelDuringResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	device := newFakeDevice()
	device.supportsPaste = false
	device.truncated = true
	device.output = "partial out"
	device.onExec = cancel
	client := NewClient(device)

	result, err := client.Exec(ctx, "while True: print('spin')")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Output != "partial out" {
		t.Errorf("Output = %q, want %q", result.Output, "partial out")
	}
	// Cancellation interrupts the running program.
	count := bytes.Count(device.writes, []byte{Interrupt.Byte()})
	if count < 2 {
		t.Errorf("interrupt written %d times, want at least 2", count)
	}
}

func TestSoftReset_Sequence(t *testing.T) {
	device := newFakeDevice()
	client := NewClient(device)

	if err := client.SoftReset(); err != nil {
		t.Fatalf("SoftReset failed: %v", err)
	}
	want := []byte{Interrupt.Byte(), ExitRaw.Byte(), EndOfTransmission.Byte()}
	if !bytes.Equal(device.writes, want) {
		t.Errorf("writes = %v, want %v", device.writes, want)
	}
}

func TestHardReset_SwallowsSeveredLink(t *testing.T) {
	device := newFakeDevice()
	device.supportsPaste = false
	device.dieOnExec = true
	client := NewClient(device)

	if err := client.HardReset(context.Background()); err != nil {
		t.Fatalf("HardReset = %v, want nil for a severed link", err)
	}
	if !bytes.Contains(device.code, []byte("machine.reset()")) {
		t.Errorf("device code = %q, want machine.reset() call", device.code)
	}
}

func TestHardReset_PropagatesRemoteError(t *testing.T) {
	device := newFakeDevice()
	device.exception = "ImportError: no module named 'machine'\r\n"
	client := NewClient(device)

	err := client.HardReset(context.Background())
	var execErr *RemoteExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *RemoteExecError", err)
	}
}

func TestExec_DiscardsStaleOutput(t *testing.T) {
	device := newFakeDevice()
	device.output = "fresh\r\n"
	device.queue([]byte("stale output from a previous program")...)
	client := NewClient(device)

	result, err := client.Exec(context.Background(), "print('fresh')")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Output != "fresh\r\n" {
		t.Errorf("Output = %q, want %q", result.Output, "fresh\r\n")
	}
}
