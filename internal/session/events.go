package session

import (
	"github.com/marmos91/dbgpfront/internal/adapter"
	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
	"github.com/marmos91/dbgpfront/internal/snapshot"
	"github.com/marmos91/dbgpfront/internal/supervisor"
)

// event is the orchestrator's unified event type: every external
// adapter stream and every internal scheduler signal funnels through
// the same channel so the event loop awaits exactly one event at a
// time (spec §5).
type event interface{ isSessionEvent() }

// fromListener wraps an adapter.ListenerEvent as a session event.
type fromListener struct{ ev adapter.ListenerEvent }

func (fromListener) isSessionEvent() {}

// fromInput wraps an adapter.InputEvent as a session event.
type fromInput struct{ ev adapter.InputEvent }

func (fromInput) isSessionEvent() {}

// fromProcess wraps a supervisor.Event as a session event.
type fromProcess struct{ ev supervisor.Event }

func (fromProcess) isSessionEvent() {}

// snapshotRequested is raised by the continuation scheduler when a
// continuation reply reports Break.
type snapshotRequested struct {
	selectedFrame int
	pendingEval   string
	hasEval       bool
}

func (snapshotRequested) isSessionEvent() {}

// snapshotBuilt carries the finished entry back into the event loop
// after the background build completes.
type snapshotBuilt struct {
	entry *snapshot.Entry
	err   error
}

func (snapshotBuilt) isSessionEvent() {}

// scheduleDone is raised once the continuation scheduler has run out
// of iterations or observed Stopping.
type scheduleDone struct {
	final  *xml.Continuation
	reason string
}

func (scheduleDone) isSessionEvent() {}

// transportFailed is raised by the scheduler (or any other background
// task) on an unrecoverable transport error.
type transportFailed struct{ err error }

func (transportFailed) isSessionEvent() {}

// userDisconnect is raised when the user explicitly disconnects.
type userDisconnect struct{}

func (userDisconnect) isSessionEvent() {}

// userQuit is raised when the user asks to exit the program entirely.
type userQuit struct{}

func (userQuit) isSessionEvent() {}

// continuationRequest is raised when the user asks for N repetitions
// of a step/run command.
type continuationRequest struct {
	kind  string // "run", "step_into", "step_over", "step_out"
	count int
}

func (continuationRequest) isSessionEvent() {}

// evalRequested attaches a pending expression to the next snapshot.
type evalRequested struct{ expression string }

func (evalRequested) isSessionEvent() {}

// cursorMoved asks for a lazy context_get back-fill on history-view
// frame navigation (spec §4.J "stack cursor movement... lazily
// back-fills").
type cursorMoved struct{ frame int }

func (cursorMoved) isSessionEvent() {}
