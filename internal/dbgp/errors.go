package dbgp

import "github.com/marmos91/dbgpfront/internal/dbgp/xml"

// protocolErrorf reports a reply-variant mismatch as the same
// ProtocolError type the xml decoder uses for shape violations (spec
// §4.C: "a variant mismatch is a ProtocolError").
func protocolErrorf(format string, args ...any) error {
	return xml.NewProtocolError(format, args...)
}
