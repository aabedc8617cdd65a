// Package types defines core domain types for the picoup deploy tool.
//
//nolint:revive // types is a common Go package naming convention
package types

// ContentKind discriminates file content handed to the device codec.
type ContentKind int

const (
	// ContentText is UTF-8 text written with a text-mode open on the device.
	ContentText ContentKind = iota
	// ContentBinary is raw bytes written with a binary-mode open on the device.
	ContentBinary
)

// Content is an explicit text-or-binary sum handed to the device codec.
// The caller decides the kind up front; the codec never sniffs.
type Content struct {
	kind ContentKind
	text string
	data []byte
}

// TextContent wraps a string as text content.
func TextContent(s string) Content {
	return Content{kind: ContentText, text: s}
}

// BinaryContent wraps raw bytes as binary content.
func BinaryContent(b []byte) Content {
	return Content{kind: ContentBinary, data: b}
}

// Kind returns the content discriminant.
func (c Content) Kind() ContentKind {
	return c.kind
}

// Text returns the text payload. Valid only when Kind() == ContentText.
func (c Content) Text() string {
	return c.text
}

// Bytes returns the raw payload regardless of kind.
func (c Content) Bytes() []byte {
	if c.kind == ContentText {
		return []byte(c.text)
	}
	return c.data
}

// Len returns the payload length in bytes.
func (c Content) Len() int {
	if c.kind == ContentText {
		return len(c.text)
	}
	return len(c.data)
}
