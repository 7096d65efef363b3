// Package ui defines the read-only projection of orchestrator state
// handed to a presentation adapter, and the Renderer contract it
// implements. See spec §4.K/§4.L.
package ui

import "github.com/marmos91/dbgpfront/internal/snapshot"

// SessionMode mirrors the orchestrator's top-level state (spec §4.J).
type SessionMode int

const (
	ModeListening SessionMode = iota
	ModeConnected
	ModeRefusing
)

func (m SessionMode) String() string {
	switch m {
	case ModeListening:
		return "Listening"
	case ModeConnected:
		return "Connected"
	case ModeRefusing:
		return "Refusing"
	default:
		return "Unknown"
	}
}

// Dialog identifies a modal overlay currently requesting input, if any.
type Dialog int

const (
	DialogNone Dialog = iota
	DialogEval
	DialogSupervisedCommand
)

// View selects which pane of the current history entry is focused.
type View int

const (
	ViewSource View = iota
	ViewChannels
)

// UiSnapshot is a read-only projection of orchestrator state consumed
// by the presentation adapter on every redraw.
type UiSnapshot struct {
	Mode             SessionMode
	ListenAddr       string
	CurrentEntry     *snapshot.Entry
	SelectedFrame    int
	View             View
	ActiveDialog     Dialog
	Notification     string
	ChannelName      string
	ChannelLines     []string
	HistoryLen       int
	HistoryIsCurrent bool
	SupportsAsync    bool // recovered feature_get("supports_async") probe
}

// Renderer draws a UiSnapshot. Implementations must not block past one
// frame's worth of work; the orchestrator calls Render synchronously
// from its single event loop (spec §5).
type Renderer interface {
	Render(snap UiSnapshot)
}
