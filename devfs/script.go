// Package devfs renders device filesystem effects as remote-executable
// MicroPython source text.
//
// File content is serialized into the script itself as an escaped literal,
// not transferred out-of-band. Large binary payloads therefore inflate the
// transferred code roughly in proportion to the encoding overhead, an
// accepted tradeoff for protocol simplicity.
package devfs

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/picoup/types"
)

// CleanFS returns the script that recursively deletes all files and
// directories under the device's storage root.
func CleanFS() string { return cleanFSScript }

// SyncFS returns the script that flushes device filesystem buffers.
// Ports without os.sync treat it as a no-op.
func SyncFS() string { return syncFSScript }

// ListFS returns the script that prints every regular file path under the
// device's storage root, one per line.
func ListFS() string { return listFSScript }

// WriteFile renders the script that writes content to targetPath on the
// device, creating parent directories as needed. The open mode is implied
// by the content kind: text-mode for text, binary-mode for bytes.
func WriteFile(targetPath string, content types.Content) (string, error) {
	if err := validateTargetPath(targetPath); err != nil {
		return "", err
	}

	mode := "wb"
	literal := pyBytesLiteral(content.Bytes())
	if content.Kind() == types.ContentText {
		mode = "wt"
		literal = pyStrLiteral(content.Text())
	}

	var b strings.Builder
	err := writeFileTemplate.Execute(&b, struct {
		TargetPath string
		Mode       string
		Content    string
	}{
		TargetPath: pyStrLiteral(targetPath),
		Mode:       pyStrLiteral(mode),
		Content:    literal,
	})
	if err != nil {
		return "", fmt.Errorf("render write script for %s: %w", targetPath, err)
	}
	return b.String(), nil
}

// validateTargetPath rejects paths that would escape the storage root or
// break the generated source.
func validateTargetPath(p string) error {
	if p == "" {
		return fmt.Errorf("target path must be non-empty")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("target path %q must use forward slashes", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("target path %q must not contain ..", p)
		}
	}
	return nil
}

// pyStrLiteral renders s as a single-quoted Python str literal.
// Control bytes are escaped so the literal survives inclusion in generated
// source regardless of content, including the 0x04 terminator value.
func pyStrLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// pyBytesLiteral renders data as a single-quoted Python bytes literal.
func pyBytesLiteral(data []byte) string {
	var b strings.Builder
	b.WriteString("b'")
	for _, c := range data {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c > 0x7e {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}
