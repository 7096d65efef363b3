// Package channel implements the name-keyed channel bus that buffers
// supervised-process output (and other text streams) for display. See
// spec §4.F.
package channel

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Channel holds one named stream: a write buffer appended to by
// background tasks, and a materialized line vector read by the
// renderer. The buffer is guarded by mu; the line vector is only ever
// replaced wholesale by unload, under the session's single-threaded
// access path (spec §4.F), so reads of it take no lock.
type Channel struct {
	mu         sync.Mutex
	buf        strings.Builder
	savepoints map[string]int

	lines []string
}

func newChannel() *Channel {
	return &Channel{savepoints: make(map[string]int)}
}

// Lines returns the current materialized line vector.
func (c *Channel) Lines() []string {
	return c.lines
}

// Bus is the name-keyed set of channels.
type Bus struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{channels: make(map[string]*Channel)}
}

func (b *Bus) channel(name string) *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		ch = newChannel()
		b.channels[name] = ch
	}
	return ch
}

// Write appends chunk to name's buffer, creating the channel if it
// doesn't exist yet.
func (b *Bus) Write(name, chunk string) {
	ch := b.channel(name)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.buf.WriteString(chunk)
}

// Writeln appends chunk followed by a newline to name's buffer.
func (b *Bus) Writeln(name, chunk string) {
	b.Write(name, chunk+"\n")
}

// NewSavepointID returns an opaque savepoint identifier.
func NewSavepointID() string {
	return uuid.New().String()
}

// Savepoint records the current buffer length of every existing
// channel under id.
func (b *Bus) Savepoint(id string) {
	b.mu.Lock()
	channels := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		ch.mu.Lock()
		ch.savepoints[id] = ch.buf.Len()
		ch.mu.Unlock()
	}
}

// Unload replaces every channel's materialized line vector with the
// lines written up to the offset recorded under id. A channel with no
// savepoint for id gets an empty line vector (spec §4.F).
func (b *Bus) Unload(id string) {
	b.mu.Lock()
	channels := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		ch.mu.Lock()
		offset, ok := ch.savepoints[id]
		var lines []string
		if ok {
			content := ch.buf.String()
			if offset > len(content) {
				offset = len(content)
			}
			lines = splitLines(content[:offset])
		}
		ch.mu.Unlock()
		ch.lines = lines
	}
}

// Viewport returns up to height lines of name's materialized line
// vector, starting at scroll. Out-of-range scroll/height never panics;
// it clamps to the vector's bounds.
func (b *Bus) Viewport(name string, height, scroll int) []string {
	ch := b.channel(name)
	lines := ch.Lines()

	if scroll < 0 {
		scroll = 0
	}
	if scroll >= len(lines) {
		return nil
	}
	end := scroll + height
	if end > len(lines) || height < 0 {
		end = len(lines)
	}
	return lines[scroll:end]
}

// Reset drops every channel.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = make(map[string]*Channel)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(s, "\n")
	return strings.Split(trimmed, "\n")
}
