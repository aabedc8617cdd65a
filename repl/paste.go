package repl

import (
	"bytes"
	"context"
	"encoding/binary"
)

// pasteSession drives the raw-paste windowed flow-control sub-protocol for
// one bulk code transfer.
//
// The window is a credit-based backpressure scheme: the device's receive
// buffer is small and fixed, so the sender must never write more bytes than
// it has been granted credit for. Credit grants can arrive asynchronously
// mid-transfer, so the send loop polls for unsolicited signal bytes
// interleaved with writing.
type pasteSession struct {
	transport Transport
	// window is the credit granted per flow-control signal.
	window uint16
	// credit is the number of bytes currently permitted on the wire.
	credit uint32
}

// beginPaste negotiates raw-paste mode.
//
// A starved or unrecognized reply returns *PasteNotSupportedError rather
// than blocking: reads are bounded by the transport timeout, and a device
// that predates the extension echoes the probe bytes instead of "R".
func beginPaste(t Transport) (*pasteSession, error) {
	if _, err := t.Write([]byte{RawPasteRequest.Byte(), pasteProbe, EnterRaw.Byte()}); err != nil {
		return nil, err
	}

	reply, err := t.Read(2)
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.Equal(reply, []byte{'R', 0x01}):
		// supported, window size follows
	case bytes.Equal(reply, []byte{'R', 0x00}):
		return nil, &PasteNotSupportedError{Recognized: true, Reply: reply}
	default:
		return nil, &PasteNotSupportedError{Recognized: false, Reply: reply}
	}

	sizeRaw, err := t.Read(2)
	if err != nil {
		return nil, err
	}
	if len(sizeRaw) < 2 {
		return nil, &ProtocolError{Kind: KindBadAck, Msg: "short raw-paste window size", Reply: sizeRaw}
	}
	window := binary.LittleEndian.Uint16(sizeRaw)

	return &pasteSession{
		transport: t,
		window:    window,
		// initial credit is one full window
		credit: uint32(window),
	}, nil
}

// send transmits the whole payload under flow control, then signals
// end-of-data and waits for the device's acknowledgement.
func (s *pasteSession) send(ctx context.Context, payload []byte) error {
	for len(payload) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Drain signal bytes whenever we are out of credit or the device
		// has something pending. Grants may arrive mid-transfer.
		avail, err := s.transport.BytesAvailable()
		if err != nil {
			return err
		}
		if s.credit == 0 || avail > 0 {
			if err := s.readSignal(); err != nil {
				return err
			}
			continue
		}

		n := len(payload)
		if uint32(n) > s.credit {
			n = int(s.credit)
		}
		wrote, err := s.transport.Write(payload[:n])
		if err != nil {
			return err
		}
		s.credit -= uint32(wrote)
		payload = payload[wrote:]
	}

	// End of data, then wait for the trailing acknowledgement.
	if _, err := s.transport.Write([]byte{EndOfTransmission.Byte()}); err != nil {
		return err
	}
	reply, err := readUntil(s.transport, EndOfTransmission.Byte())
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(reply, []byte{EndOfTransmission.Byte()}) {
		return &ProtocolError{Kind: KindBadAck, Msg: "raw-paste transfer was not acknowledged", Reply: reply}
	}
	return nil
}

// readSignal consumes one flow-control byte from the device.
// A starved read is not an error; the caller re-polls.
func (s *pasteSession) readSignal() error {
	sig, err := s.transport.Read(1)
	if err != nil {
		return err
	}
	if len(sig) == 0 {
		return nil
	}

	switch Control(sig[0]) {
	case EnterRaw:
		// one more window of credit granted
		s.credit += uint32(s.window)
		return nil
	case EndOfTransmission:
		// device aborted the transfer; acknowledge before bailing
		_, _ = s.transport.Write([]byte{EndOfTransmission.Byte()})
		return &ProtocolError{Kind: KindAbruptEnd, Msg: "device indicated abrupt end of input"}
	default:
		return &ProtocolError{Kind: KindUnexpectedReply, Msg: "unexpected raw-paste signal", Reply: sig}
	}
}
