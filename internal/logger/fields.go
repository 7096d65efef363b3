package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so log
// lines can be grepped/aggregated across the protocol client, session
// orchestrator, channel bus and supervisor.
const (
	// DBGp protocol
	KeyTransactionID = "tid"     // DBGp transaction id
	KeyCommand       = "command" // DBGp command name
	KeyStatus        = "status"  // continuation status (break, stopping, ...)
	KeyReason        = "reason"  // raw continuation reason string

	// Source / stack
	KeyFilename = "filename" // source URI
	KeyLine     = "line"     // 1-based break line
	KeyLevel    = "level"    // stack frame level (0 = innermost)

	// Session
	KeyState = "state" // session state (Listening, Connected, Refusing)
	KeyEvent = "event"

	// Channels / process supervisor
	KeyChannel  = "channel" // channel name (stdout, stderr)
	KeyExitCode = "exit_code"

	// Generic
	KeyError = "error"
)

// TransactionID returns a slog.Attr for a DBGp transaction id.
func TransactionID(tid int) slog.Attr {
	return slog.Int(KeyTransactionID, tid)
}

// Command returns a slog.Attr for a DBGp command name.
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// Status returns a slog.Attr for a continuation status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Reason returns a slog.Attr for a continuation reason.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// Filename returns a slog.Attr for a source URI.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Line returns a slog.Attr for a 1-based break line.
func Line(line int) slog.Attr {
	return slog.Int(KeyLine, line)
}

// StackLevel returns a slog.Attr for a stack frame level.
func StackLevel(level int) slog.Attr {
	return slog.Int(KeyLevel, level)
}

// State returns a slog.Attr for a session state name.
func State(state string) slog.Attr {
	return slog.String(KeyState, state)
}

// Channel returns a slog.Attr for a channel name.
func Channel(name string) slog.Attr {
	return slog.String(KeyChannel, name)
}

// ExitCode returns a slog.Attr for a process exit code.
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, fmt.Sprint(err))
}
