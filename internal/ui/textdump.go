package ui

import (
	"fmt"
	"io"
)

// TextDump is a trivial Renderer that writes a one-line-per-field
// summary to an io.Writer. It exists so cmd/dbgpfront is runnable
// without a real terminal (e.g. in CI or piped output); the
// interactive renderer is an external collaborator per spec §1.
type TextDump struct {
	w io.Writer
}

// NewTextDump constructs a TextDump writing to w.
func NewTextDump(w io.Writer) *TextDump {
	return &TextDump{w: w}
}

func (t *TextDump) Render(snap UiSnapshot) {
	fmt.Fprintf(t.w, "mode=%s listen=%s history=%d/current=%t\n",
		snap.Mode, snap.ListenAddr, snap.HistoryLen, snap.HistoryIsCurrent)

	if snap.CurrentEntry != nil {
		for _, frame := range snap.CurrentEntry.Frames {
			fmt.Fprintf(t.w, "  #%d %s:%d\n", frame.Level, frame.Filename, frame.Line)
		}
	}
	if snap.Notification != "" {
		fmt.Fprintf(t.w, "notice: %s\n", snap.Notification)
	}
	if snap.ActiveDialog != DialogNone {
		fmt.Fprintf(t.w, "dialog: %d\n", snap.ActiveDialog)
	}
}
