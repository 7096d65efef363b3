package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context: which DBGp command is
// in flight, against which transaction id, and since when.
type LogContext struct {
	TransactionID int       // DBGp transaction id of the in-flight command
	Command       string    // DBGp command name (step_into, stack_get, ...)
	Filename      string    // source URI the command concerns, if any
	StartTime     time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a command about to be issued.
func NewLogContext(command string) *LogContext {
	return &LogContext{
		Command:   command,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TransactionID: lc.TransactionID,
		Command:       lc.Command,
		Filename:      lc.Filename,
		StartTime:     lc.StartTime,
	}
}

// WithTransactionID returns a copy with the transaction id set
func (lc *LogContext) WithTransactionID(tid int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TransactionID = tid
	}
	return clone
}

// WithFilename returns a copy with the filename set
func (lc *LogContext) WithFilename(filename string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Filename = filename
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
