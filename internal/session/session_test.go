package session

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dbgpfront/internal/config"
	"github.com/marmos91/dbgpfront/internal/ui"
)

// fakeDebuggee speaks just enough DBGp over a real TCP connection to
// drive a Session through connect/continue/disconnect, mirroring the
// dbgp package's own client_test.go harness.
type fakeDebuggee struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialFakeDebuggee(t *testing.T, addr string) *fakeDebuggee {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeDebuggee{conn: conn, r: bufio.NewReader(conn)}
}

func (f *fakeDebuggee) sendFrame(payload string) {
	frame := fmt.Sprintf("%d\x00%s\x00", len(payload), payload)
	f.conn.Write([]byte(frame))
}

func (f *fakeDebuggee) readCommand() (string, int) {
	line, _ := f.r.ReadString(0)
	line = strings.TrimSuffix(line, "\x00")
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", 0
	}
	tid := 0
	for i, p := range parts {
		if p == "-i" && i+1 < len(parts) {
			fmt.Sscanf(parts[i+1], "%d", &tid)
		}
	}
	return parts[0], tid
}

// replyUnknown answers any feature_set/feature_get probe with an
// acknowledgment so Session.connect's negotiation step completes.
func (f *fakeDebuggee) replyUnknown(cmd string, tid int) {
	f.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="%s" transaction_id="%d"/>`, cmd, tid))
}

func (f *fakeDebuggee) replyContinuation(cmd string, tid int, status, reason string) {
	f.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="%s" transaction_id="%d" status="%s" reason="%s"/>`, cmd, tid, status, reason))
}

func (f *fakeDebuggee) replyStackGet(tid int, filename string, line int) {
	f.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="stack_get" transaction_id="%d"><stack level="0" filename="%s" lineno="%d"/></response>`, tid, filename, line))
}

func (f *fakeDebuggee) replySource(tid int, text string) {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	f.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="source" transaction_id="%d" encoding="base64"><![CDATA[%s]]></response>`, tid, encoded))
}

func (f *fakeDebuggee) replyContextGetEmpty(tid int) {
	f.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="context_get" transaction_id="%d"/>`, tid))
}

// serveBreakCycles drives n step_into/stack_get/[source]/context_get
// exchanges in lockstep, recording the command order it observed into
// order. Source is only fetched on the first cycle since the
// workspace caches it thereafter (spec §4.E). Reading the next
// command only after answering the previous one means a scheduler
// that raced ahead -- issuing step_into #(i+1) before #i's snapshot
// finished -- would desynchronize the expected command names here and
// fail the require.Equal checks, which is what makes this a real test
// of the "at least one snapshot completes between continuations"
// invariant (spec §8/§9), not just a canned exchange.
func serveBreakCycles(t *testing.T, fake *fakeDebuggee, n int, order *[]string, mu *sync.Mutex) {
	t.Helper()
	record := func(cmd string) {
		mu.Lock()
		*order = append(*order, cmd)
		mu.Unlock()
	}

	fetchedSource := false
	for i := 0; i < n; i++ {
		cmd, tid := fake.readCommand()
		record(cmd)
		require.Equal(t, "step_into", cmd)
		fake.replyContinuation(cmd, tid, "break", "ok")

		cmd, tid = fake.readCommand()
		record(cmd)
		require.Equal(t, "stack_get", cmd)
		fake.replyStackGet(tid, "file:///a.php", 3)

		if !fetchedSource {
			cmd, tid = fake.readCommand()
			record(cmd)
			require.Equal(t, "source", cmd)
			fake.replySource(tid, "<?php\n$x = 1;\n")
			fetchedSource = true
		}

		cmd, tid = fake.readCommand()
		record(cmd)
		require.Equal(t, "context_get", cmd)
		fake.replyContextGetEmpty(tid)
	}
}

func (f *fakeDebuggee) handshake() {
	f.sendFrame(`<init xmlns="urn:debugger_protocol_v1" fileuri="file:///a.php"/>`)
	for i := 0; i < 3; i++ {
		cmd, tid := f.readCommand()
		if cmd == "" {
			return
		}
		f.replyUnknown(cmd, tid)
	}
}

// recordingRenderer captures every UiSnapshot handed to it for test
// assertions, guarded by a mutex since Render is called from the
// session's single event-loop goroutine while the test reads from
// another.
type recordingRenderer struct {
	mu   sync.Mutex
	last ui.UiSnapshot
	n    int
}

func (r *recordingRenderer) Render(snap ui.UiSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = snap
	r.n++
}

func (r *recordingRenderer) snapshot() (ui.UiSnapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.n
}

func testConfig() *config.Config {
	return &config.Config{
		Listen:               "127.0.0.1:0",
		MaxDepth:             32,
		StackMaxContextFetch: 3,
		MotionPrefixMax:      999,
	}
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// startSession constructs and runs a Session against stdin, returning
// it once the listener has actually bound.
func startSession(t *testing.T, cfg *config.Config, renderer ui.Renderer, stdin io.Reader) (*Session, context.CancelFunc) {
	t.Helper()
	s := New(cfg, renderer, stdin)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	waitFor(t, time.Second, func() bool { return s.ListenAddr() != "" })
	t.Cleanup(cancel)
	return s, cancel
}

func TestSessionAcceptsConnectionAndNegotiatesFeatures(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, _ := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()

	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	snap, _ := renderer.snapshot()
	require.Equal(t, ui.ModeConnected, snap.Mode)
	require.True(t, snap.SupportsAsync)
	require.Equal(t, 1, snap.HistoryLen)
}

func TestSessionRefusesConnectionAfterDisconnect(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, _ := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	// A second dial is accepted at the TCP layer (the listener never
	// stops accepting) but the session, already Connected, is not
	// Refusing yet -- disconnect first to reach Refusing.
	s.events <- userDisconnect{}
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeRefusing
	})

	second, err := net.Dial("tcp", s.ListenAddr())
	require.NoError(t, err)
	defer second.Close()

	buf := make([]byte, 1)
	second.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, readErr := second.Read(buf)
	require.Error(t, readErr, "refused connection should be closed without a reply")
}

func TestSessionRefusingReturnsToListeningOnKey(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, stdinW := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	s.events <- userDisconnect{}
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeRefusing
	})

	go stdinW.Write([]byte("l"))
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeListening
	})
}

func TestSessionQuitsOnQKey(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, stdinW := io.Pipe()
	cfg := testConfig()
	s := New(cfg, renderer, stdinR)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	waitFor(t, time.Second, func() bool { return s.ListenAddr() != "" })

	go stdinW.Write([]byte("q"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session never quit on 'q'")
	}
}

func TestSessionNumericPrefixAccumulatesAcrossDigits(t *testing.T) {
	s := New(testConfig(), nil, strings.NewReader(""))
	s.accumulatePrefix('1')
	s.accumulatePrefix('2')
	require.Equal(t, 12, s.consumePrefix())
	// consumePrefix resets to the default of 1 once drained.
	require.Equal(t, 1, s.consumePrefix())
}

func TestSessionNumericPrefixSaturatesAtConfiguredMax(t *testing.T) {
	cfg := testConfig()
	cfg.MotionPrefixMax = 5
	s := New(cfg, nil, strings.NewReader(""))
	for _, d := range "999" {
		s.accumulatePrefix(d)
	}
	require.Equal(t, 5, s.consumePrefix())
}

func TestContinuationRequestAdvancesThroughScheduler(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, _ := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	var order []string
	var mu sync.Mutex
	respond := make(chan struct{})
	go func() {
		defer close(respond)
		serveBreakCycles(t, fake, 1, &order, &mu)
	}()

	s.events <- continuationRequest{kind: "step_into", count: 1}

	select {
	case <-respond:
	case <-time.After(2 * time.Second):
		t.Fatal("fake debuggee never observed the step_into/stack_get exchange")
	}

	waitFor(t, 2*time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.HistoryLen == 2
	})
}

// TestContinuationRequestWithCountSerializesEachIterationAgainstItsSnapshot
// covers spec §4.J/§9's "hard part": stepping N=3 times must never let
// the scheduler issue the next step_into until the previous one's
// snapshot (stack_get/context_get) has fully round-tripped. serveBreakCycles
// enforces this by requiring the exact command sequence in lockstep with
// the fake debuggee's replies.
func TestContinuationRequestWithCountSerializesEachIterationAgainstItsSnapshot(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, _ := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	var order []string
	var mu sync.Mutex
	respond := make(chan struct{})
	go func() {
		defer close(respond)
		serveBreakCycles(t, fake, 3, &order, &mu)
	}()

	s.events <- continuationRequest{kind: "step_into", count: 3}

	select {
	case <-respond:
	case <-time.After(2 * time.Second):
		t.Fatal("fake debuggee never observed all three step_into cycles")
	}

	waitFor(t, 2*time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.HistoryLen == 4 // initial connect entry + 3 breaks
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"step_into", "stack_get", "source", "context_get",
		"step_into", "stack_get", "context_get",
		"step_into", "stack_get", "context_get",
	}, order)
}

func TestContinuationStoppingDisconnects(t *testing.T) {
	renderer := &recordingRenderer{}
	stdinR, _ := io.Pipe()
	s, _ := startSession(t, testConfig(), renderer, stdinR)

	fake := dialFakeDebuggee(t, s.ListenAddr())
	fake.handshake()
	waitFor(t, time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeConnected
	})

	go func() {
		_, tid := fake.readCommand()
		fake.sendFrame(fmt.Sprintf(`<response xmlns="urn:debugger_protocol_v1" command="run" transaction_id="%d" status="stopping" reason="ok"/>`, tid))
	}()

	s.events <- continuationRequest{kind: "run", count: 1}

	waitFor(t, 2*time.Second, func() bool {
		snap, _ := renderer.snapshot()
		return snap.Mode == ui.ModeRefusing
	})
}
