package repl

import (
	"bytes"
	"context"
	"errors"

	"github.com/pithecene-io/picoup/log"
)

// Client drives the raw REPL protocol state machine over a Transport.
//
// A Client is not reentrant: exactly one Exec, SoftReset, or HardReset call
// may be in flight at a time, because raw-mode entry/exit and the paste
// window credit are shared protocol state with no isolation between
// concurrent callers. Deploying to multiple devices concurrently requires
// one Transport and one Client per device.
type Client struct {
	transport Transport
	logger    *log.SugaredLogger

	// useRawPaste remembers this client's fallback decision. Once a device
	// rejects raw-paste negotiation the flag is cleared for the remaining
	// lifetime of the client.
	useRawPaste bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the protocol debug logger.
func WithLogger(logger *log.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithoutRawPaste disables raw-paste negotiation up front.
// Useful for firmware known to misbehave during negotiation.
func WithoutRawPaste() Option {
	return func(c *Client) {
		c.useRawPaste = false
	}
}

// NewClient creates a REPL client owning the given transport.
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:   t,
		logger:      log.NewNop().Sugar(),
		useRawPaste: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// RawPasteEnabled reports whether this client still believes the device
// supports raw-paste transfer.
func (c *Client) RawPasteEnabled() bool {
	return c.useRawPaste
}

// Exec executes code on the device and returns its framed result.
// A remote exception is reported in the result, not as an error;
// use ExecChecked to escalate it.
func (c *Client) Exec(ctx context.Context, code string) (ExecResult, error) {
	return c.exec(ctx, code, false)
}

// ExecChecked executes code and fails with *RemoteExecError when the device
// reports an exception.
func (c *Client) ExecChecked(ctx context.Context, code string) (ExecResult, error) {
	return c.exec(ctx, code, true)
}

func (c *Client) exec(ctx context.Context, code string, check bool) (ExecResult, error) {
	if err := c.interrupt(); err != nil {
		return ExecResult{}, err
	}
	if err := discardPending(c.transport); err != nil {
		return ExecResult{}, err
	}

	// Raw mode is exited on every path, including failed entry: the device
	// may have made it partway in even when the prompt never arrived.
	defer c.exitRaw()

	if err := c.enterRaw(); err != nil {
		return ExecResult{}, err
	}

	payload := []byte(code)
	transferred := false
	if c.useRawPaste {
		session, err := beginPaste(c.transport)
		switch {
		case err == nil:
			if err := session.send(ctx, payload); err != nil {
				return ExecResult{}, err
			}
			transferred = true
		case IsPasteNotSupported(err):
			c.useRawPaste = false
			c.logger.Debugf("raw paste unavailable, using fallback transfer: %v", err)
			if err := discardPending(c.transport); err != nil {
				return ExecResult{}, err
			}
		default:
			return ExecResult{}, err
		}
	}
	if !transferred {
		if err := c.rawWrite(payload); err != nil {
			return ExecResult{}, err
		}
	}

	result, err := c.collectResult(ctx)
	if err != nil {
		return ExecResult{}, err
	}
	if check {
		if err := result.Check(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// SoftReset restarts the MicroPython VM.
//
// machine.soft_reset() is unreliable while the device is still inside raw
// input mode, so the reset is expressed as interrupt, raw-mode exit, then
// end-of-transmission at the friendly prompt.
func (c *Client) SoftReset() error {
	if err := c.interrupt(); err != nil {
		return err
	}
	if _, err := c.transport.Write([]byte{ExitRaw.Byte()}); err != nil {
		return err
	}
	_, err := c.transport.Write([]byte{EndOfTransmission.Byte()})
	return err
}

// HardReset power-cycles the MCU via machine.reset().
// A hard reset severs the link before any acknowledgement can be read, so
// transport-level failures are the expected outcome and are swallowed;
// protocol and remote execution errors still propagate.
func (c *Client) HardReset(ctx context.Context) error {
	_, err := c.ExecChecked(ctx, "import machine; machine.reset()")
	if err == nil {
		return nil
	}
	var protoErr *ProtocolError
	var execErr *RemoteExecError
	if errors.As(err, &protoErr) || errors.As(err, &execErr) {
		return err
	}
	c.logger.Debugf("link severed during hard reset: %v", err)
	return nil
}

// interrupt stops whatever program is currently running.
func (c *Client) interrupt() error {
	_, err := c.transport.Write([]byte{Interrupt.Byte()})
	return err
}

// enterRaw switches the device into raw input mode and waits for its prompt.
func (c *Client) enterRaw() error {
	if _, err := c.transport.Write([]byte{EnterRaw.Byte()}); err != nil {
		return err
	}
	reply, err := readUntil(c.transport, rawPrompt)
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(reply, []byte{rawPrompt}) {
		return &ProtocolError{Kind: KindEnterRaw, Msg: "failed to enter raw input mode", Reply: reply}
	}
	return nil
}

func (c *Client) exitRaw() {
	_, _ = c.transport.Write([]byte{ExitRaw.Byte()})
}

// rawWrite is the non-paste fallback transfer: payload, end-of-transmission,
// then a 2-byte "OK" acknowledgement.
func (c *Client) rawWrite(payload []byte) error {
	if _, err := c.transport.Write(payload); err != nil {
		return err
	}
	if _, err := c.transport.Write([]byte{EndOfTransmission.Byte()}); err != nil {
		return err
	}
	reply, err := c.transport.Read(2)
	if err != nil {
		return err
	}
	if !bytes.Equal(reply, []byte("OK")) {
		return &ProtocolError{Kind: KindExecAck, Msg: "failed to execute command", Reply: reply}
	}
	return nil
}

// collectResult reads the two end-of-transmission framed segments: program
// output, then exception text.
//
// Cancellation while waiting for output is a protocol event, not an abort:
// the client interrupts the program, performs one more bounded read so the
// device can finish the line it was emitting, and still produces a
// well-formed (if truncated) result.
func (c *Client) collectResult(ctx context.Context) (ExecResult, error) {
	term := []byte{EndOfTransmission.Byte()}

	var output []byte
	for !bytes.HasSuffix(output, term) {
		if ctx.Err() != nil {
			if err := c.interrupt(); err != nil {
				return ExecResult{}, err
			}
			chunk, err := c.transport.ReadUntil(EndOfTransmission.Byte())
			if err != nil {
				return ExecResult{}, err
			}
			output = append(output, chunk...)
			break
		}
		chunk, err := c.transport.ReadUntil(EndOfTransmission.Byte())
		if err != nil {
			return ExecResult{}, err
		}
		output = append(output, chunk...)
	}

	exception, err := readUntil(c.transport, EndOfTransmission.Byte())
	if err != nil {
		return ExecResult{}, err
	}

	return ExecResult{
		Output:    string(bytes.Trim(output, "\x04")),
		Exception: string(bytes.Trim(exception, "\x04")),
	}, nil
}
