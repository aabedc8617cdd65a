package repl

import (
	"errors"
	"fmt"
)

// ProtocolErrorKind classifies malformed or unexpected byte sequences
// received from the device.
type ProtocolErrorKind int

const (
	// KindEnterRaw indicates the device never presented the raw prompt.
	KindEnterRaw ProtocolErrorKind = iota
	// KindExecAck indicates the fallback transfer was not acknowledged with "OK".
	KindExecAck
	// KindAbruptEnd indicates the device aborted a raw-paste transfer.
	KindAbruptEnd
	// KindUnexpectedReply indicates an unknown signal byte arrived during
	// raw-paste flow control.
	KindUnexpectedReply
	// KindBadAck indicates the trailing end-of-data acknowledgement never arrived.
	KindBadAck
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case KindEnterRaw:
		return "enter_raw"
	case KindExecAck:
		return "exec_ack"
	case KindAbruptEnd:
		return "abrupt_end"
	case KindUnexpectedReply:
		return "unexpected_reply"
	case KindBadAck:
		return "bad_ack"
	default:
		return "unknown"
	}
}

// ProtocolError represents a protocol violation by the device.
// Fatal for the current execution; the link itself may still be usable.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Msg  string
	// Reply holds the offending bytes, if any were captured.
	Reply []byte
}

func (e *ProtocolError) Error() string {
	if len(e.Reply) > 0 {
		return fmt.Sprintf("%s (reply: %q)", e.Msg, e.Reply)
	}
	return e.Msg
}

// PasteNotSupportedError indicates raw-paste negotiation failed.
//
// Recognized distinguishes a device that understands the request but has
// raw paste disabled from one that predates the extension. Both cases are
// handled identically by the client (permanent fallback for the remaining
// lifetime of the client); the distinction exists for diagnostics only.
type PasteNotSupportedError struct {
	Recognized bool
	Reply      []byte
}

func (e *PasteNotSupportedError) Error() string {
	if e.Recognized {
		return "device understands raw paste but has it disabled"
	}
	return fmt.Sprintf("device does not support raw paste (reply: %q)", e.Reply)
}

// IsPasteNotSupported reports whether err is a raw-paste negotiation failure.
func IsPasteNotSupported(err error) bool {
	var nse *PasteNotSupportedError
	return errors.As(err, &nse)
}

// RemoteExecError indicates the device ran the submitted code but it raised.
// Exception holds the verbatim text block the device emitted for the failure.
type RemoteExecError struct {
	Exception string
}

func (e *RemoteExecError) Error() string {
	return fmt.Sprintf("remote execution failed: %s", e.Exception)
}
