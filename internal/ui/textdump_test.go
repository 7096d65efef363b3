package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/dbgpfront/internal/snapshot"
)

func TestTextDumpRendersModeAndFrames(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextDump(&buf)

	r.Render(UiSnapshot{
		Mode:       ModeConnected,
		ListenAddr: "0.0.0.0:9003",
		HistoryLen: 1,
		CurrentEntry: &snapshot.Entry{
			Frames: []snapshot.Frame{{Level: 0, Filename: "file:///a.php", Line: 4}},
		},
		Notification: "stepped",
	})

	out := buf.String()
	assert.True(t, strings.Contains(out, "mode=Connected"))
	assert.True(t, strings.Contains(out, "file:///a.php:4"))
	assert.True(t, strings.Contains(out, "notice: stepped"))
}
