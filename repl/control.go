// Package repl implements the MicroPython raw REPL wire protocol.
//
// The protocol drives the device's interactive REPL into a scriptable mode
// using single-byte control signals, executes submitted code as one program,
// and frames the result so program stdout can be told apart from a remote
// exception. An optional raw-paste extension provides windowed,
// flow-controlled bulk code transfer.
package repl

// Control is a single-byte REPL control signal.
// The values are fixed by the device firmware, not configurable.
type Control byte

const (
	// EnterRaw switches the REPL into raw input mode (Ctrl-A).
	// During a raw-paste transfer the same byte value doubles as the
	// flow-control signal granting one window of send credit.
	EnterRaw Control = 0x01

	// ExitRaw leaves raw input mode back to the friendly REPL (Ctrl-B).
	ExitRaw Control = 0x02

	// Interrupt stops the currently running program (Ctrl-C).
	Interrupt Control = 0x03

	// EndOfTransmission terminates a submitted payload and frames each
	// result segment (Ctrl-D).
	EndOfTransmission Control = 0x04

	// RawPasteRequest asks the device to enter raw-paste mode (Ctrl-E).
	RawPasteRequest Control = 0x05
)

// Byte returns the wire value of the control signal.
func (c Control) Byte() byte { return byte(c) }

// String returns the signal name for diagnostics.
func (c Control) String() string {
	switch c {
	case EnterRaw:
		return "enter-raw"
	case ExitRaw:
		return "exit-raw"
	case Interrupt:
		return "interrupt"
	case EndOfTransmission:
		return "end-of-transmission"
	case RawPasteRequest:
		return "raw-paste-request"
	default:
		return "unknown"
	}
}

// rawPrompt terminates the banner the device prints on raw mode entry.
const rawPrompt = '>'

// pasteProbe is the byte written between RawPasteRequest and EnterRaw
// during raw-paste negotiation.
const pasteProbe = 'A'
