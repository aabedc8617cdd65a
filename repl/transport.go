package repl

import "bytes"

// Transport is a duplex byte channel to the device with timeout-bound reads.
//
// Every read is governed by the transport's configured timeout: a starved
// read returns fewer bytes than requested (possibly none) rather than an
// error, so protocol code must treat short reads as a cue to re-poll, never
// as exact framing.
type Transport interface {
	// Write sends p and returns the number of bytes actually written.
	Write(p []byte) (int, error)

	// Read reads up to n bytes, returning whatever arrived before the
	// timeout expired.
	Read(n int) ([]byte, error)

	// ReadUntil reads until term is seen or the timeout is exhausted.
	// The returned slice ends with term only when the terminator arrived.
	ReadUntil(term byte) ([]byte, error)

	// BytesAvailable reports how many bytes can be read without blocking.
	BytesAvailable() (int, error)

	// Close releases the channel.
	Close() error
}

// readUntil keeps reading until the accumulated reply ends with term or a
// timeout-bound read yields nothing more.
func readUntil(t Transport, term byte) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := t.ReadUntil(term)
		if err != nil {
			return buf, err
		}
		buf = append(buf, chunk...)
		if len(chunk) == 0 || bytes.HasSuffix(buf, []byte{term}) {
			return buf, nil
		}
	}
}

// discardPending drains and drops everything currently buffered.
// Clears stale output left over from a previously running program.
func discardPending(t Transport) error {
	for {
		n, err := t.BytesAvailable()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := t.Read(n); err != nil {
			return err
		}
	}
}
