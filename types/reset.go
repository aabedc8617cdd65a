package types

import "fmt"

// ResetMode selects the device reset performed after a successful deploy.
type ResetMode string

const (
	// ResetNone leaves the device in raw-exited REPL state.
	ResetNone ResetMode = "none"
	// ResetSoft restarts the MicroPython VM, re-running boot.py and main.py.
	ResetSoft ResetMode = "soft"
	// ResetHard power-cycles the MCU via machine.reset(), severing the link.
	ResetHard ResetMode = "hard"
)

// ParseResetMode validates and converts a user-supplied reset mode string.
func ParseResetMode(s string) (ResetMode, error) {
	switch ResetMode(s) {
	case ResetNone, ResetSoft, ResetHard:
		return ResetMode(s), nil
	default:
		return "", fmt.Errorf("invalid reset mode %q (must be none, soft, or hard)", s)
	}
}
