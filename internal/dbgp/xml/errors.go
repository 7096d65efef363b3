package xml

import "fmt"

// ProtocolError signals an XML shape violation: a missing required
// attribute, an unparsable numeric attribute, or (when raised by the
// protocol client) a response variant that doesn't match the command
// that was issued. See spec §4.B, §4.C, §7.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dbgp protocol: %s", e.Msg)
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// NewProtocolError builds a ProtocolError for callers outside this
// package (the dbgp client reports reply-variant mismatches using the
// same error type as decode shape violations).
func NewProtocolError(format string, args ...any) *ProtocolError {
	return protocolErrorf(format, args...)
}
