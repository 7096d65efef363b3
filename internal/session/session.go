// Package session owns the top-level state machine: Listening,
// Connected, Refusing, and the continuation scheduler that interleaves
// step/run requests with snapshot builds. See spec §4.J.
package session

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/marmos91/dbgpfront/internal/adapter"
	"github.com/marmos91/dbgpfront/internal/analyzer"
	"github.com/marmos91/dbgpfront/internal/channel"
	"github.com/marmos91/dbgpfront/internal/config"
	"github.com/marmos91/dbgpfront/internal/dbgp"
	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
	"github.com/marmos91/dbgpfront/internal/history"
	"github.com/marmos91/dbgpfront/internal/logger"
	"github.com/marmos91/dbgpfront/internal/snapshot"
	"github.com/marmos91/dbgpfront/internal/supervisor"
	"github.com/marmos91/dbgpfront/internal/ui"
	"github.com/marmos91/dbgpfront/internal/workspace"
)

// Session is the orchestrator. One Session serves at most one
// debuggee connection at a time (spec §1 Non-goal: "multi-session
// multiplexing").
type Session struct {
	cfg *config.Config

	client  *dbgp.Client
	lock    *clientLock
	ws      *workspace.Workspace
	bus     *channel.Bus
	proc    *supervisor.Supervisor
	builder *snapshot.Builder
	hist    *history.History[*snapshot.Entry]
	renderer ui.Renderer
	stdin    io.Reader

	listener      *adapter.Listener
	input         *adapter.Input
	ticker        *adapter.Ticker
	processEvents chan supervisor.Event
	events        chan event

	mode          ui.SessionMode
	numericPrefix int
	notification  string
	activeDialog  ui.Dialog
	pendingEval   string
	hasPendingEval bool
	selectedFrame int
	supportsAsync bool

	connConn      net.Conn
	schedulerCtx  context.Context
	schedulerStop context.CancelFunc
	notifier      *snapshotNotifier
}

// New constructs a Session ready to Run. renderer receives a redraw on
// every meaningful state change; stdin feeds the keyboard adapter.
func New(cfg *config.Config, renderer ui.Renderer, stdin io.Reader) *Session {
	client := dbgp.New()
	lock := &clientLock{}
	ws := workspace.New(client)
	registry := analyzer.NewRegistry()
	builder := snapshot.New(client, ws, registry, cfg.StackMaxContextFetch)

	return &Session{
		cfg:           cfg,
		client:        client,
		lock:          lock,
		ws:            ws,
		bus:           channel.New(),
		builder:       builder,
		hist:          history.New[*snapshot.Entry](),
		renderer:      renderer,
		stdin:         stdin,
		processEvents: make(chan supervisor.Event, 64),
		events:        make(chan event, 64),
		mode:          ui.ModeListening,
	}
}

// Run starts the listener and every background adapter, then drives
// the event loop until ctx is canceled. Cancellation of background
// tasks on shutdown is mandatory (spec §4.K).
func (s *Session) Run(ctx context.Context) error {
	listener, err := adapter.NewListener(s.cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = listener
	go listener.Run()

	s.input = adapter.NewInput(s.stdin)
	s.ticker = adapter.NewTicker(200 * time.Millisecond)

	s.proc = supervisor.New(s.processEvents)

	defer func() {
		s.listener.Close()
		s.ticker.Stop()
		s.proc.Stop()
		if s.schedulerStop != nil {
			s.schedulerStop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.listener.Events():
			s.dispatch(fromListener{ev: ev})
		case ev := <-s.input.Events():
			s.dispatch(fromInput{ev: ev})
		case ev := <-s.ticker.Events():
			s.dispatch(fromInput{ev: ev})
		case ev := <-s.processEvents:
			s.dispatch(fromProcess{ev: ev})
		case ev := <-s.events:
			s.dispatch(ev)
		}
		if s.mode == modeQuit {
			return nil
		}
		s.render()
	}
}

// modeQuit is an internal sentinel distinct from ui.SessionMode's
// three public states; Run checks for it to break out of the loop.
const modeQuit ui.SessionMode = -1

// ListenAddr returns the listener's actual bound address once Run has
// started it; empty before that.
func (s *Session) ListenAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr()
}

func (s *Session) dispatch(ev event) {
	switch s.mode {
	case ui.ModeListening:
		s.handleListening(ev)
	case ui.ModeConnected:
		s.handleConnected(ev)
	case ui.ModeRefusing:
		s.handleRefusing(ev)
	}
}

func (s *Session) handleListening(ev event) {
	switch e := ev.(type) {
	case fromListener:
		switch le := e.ev.(type) {
		case adapter.ClientConnected:
			s.connect(le.Conn)
		case adapter.ListenerPanic:
			logger.Error("listener failure", logger.Reason(le.Msg))
		}
	case fromInput:
		if key, ok := e.ev.(adapter.Key); ok {
			s.handleGlobalKey(key)
		}
	}
}

func (s *Session) handleRefusing(ev event) {
	if fl, ok := ev.(fromListener); ok {
		if cc, ok := fl.ev.(adapter.ClientConnected); ok {
			// Listener keeps running so a later return to Listening
			// restores acceptance; a connection offered while Refusing
			// is simply declined (spec §4.J).
			cc.Conn.Close()
			return
		}
	}
	if fi, ok := ev.(fromInput); ok {
		if key, ok := fi.ev.(adapter.Key); ok {
			if key.Code == 'l' {
				s.mode = ui.ModeListening
				return
			}
			s.handleGlobalKey(key)
		}
	}
}

func (s *Session) connect(conn net.Conn) {
	init, err := s.client.Connect(conn)
	if err != nil {
		logger.Error("connect failed", logger.Err(err))
		conn.Close()
		return
	}
	s.connConn = conn

	if err := s.client.FeatureSet("max_depth", itoa(s.cfg.MaxDepth)); err != nil {
		logger.Warn("feature_set max_depth failed", logger.Err(err))
	}
	if err := s.client.FeatureSet("extended_properties", "1"); err != nil {
		logger.Warn("feature_set extended_properties failed", logger.Err(err))
	}
	if resp, err := s.client.FeatureGet("supports_async"); err == nil && resp.Unknown != nil {
		s.supportsAsync = true
	}

	s.ws.Reset()
	s.builder.Reset()
	s.hist = history.New[*snapshot.Entry]()
	s.hist.Push(&snapshot.Entry{
		Frames: []snapshot.Frame{{Filename: init.FileURI, Line: 0}},
	})

	s.notifier = newSnapshotNotifier()
	s.mode = ui.ModeConnected
	s.notification = "connected: " + init.FileURI

	if len(s.cfg.SupervisedCmd) > 0 {
		if err := s.proc.Start(s.cfg.SupervisedCmd); err != nil {
			logger.Warn("supervised command failed to start", logger.Err(err))
		}
	}
}

func (s *Session) handleConnected(ev event) {
	switch e := ev.(type) {
	case fromInput:
		switch ie := e.ev.(type) {
		case adapter.Key:
			s.handleConnectedKey(ie)
		case adapter.Tick:
		}
	case fromProcess:
		switch pe := e.ev.(type) {
		case supervisor.ChannelLog:
			s.bus.Write(pe.Channel, pe.Chunk)
		case supervisor.NotifyError:
			s.notification = "supervised process exited nonzero"
		}
	case continuationRequest:
		s.startScheduler(e)
	case snapshotRequested:
		s.buildSnapshot(e)
	case snapshotBuilt:
		s.onSnapshotBuilt(e)
	case scheduleDone:
		s.onScheduleDone(e)
	case transportFailed:
		logger.Error("transport failed", logger.Err(e.err))
		s.disconnect()
	case userDisconnect:
		s.disconnect()
	case cursorMoved:
		s.onCursorMoved(e)
	case evalRequested:
		s.pendingEval, s.hasPendingEval = e.expression, true
	}
}

func (s *Session) handleConnectedKey(key adapter.Key) {
	if isDigit(key.Code) {
		s.accumulatePrefix(key.Code)
		return
	}
	n := s.consumePrefix()

	switch key.Code {
	case 'r':
		s.events <- continuationRequest{kind: "run", count: n}
	case 'n':
		s.events <- continuationRequest{kind: "step_into", count: n}
	case 'o':
		s.events <- continuationRequest{kind: "step_over", count: n}
	case 'O':
		s.events <- continuationRequest{kind: "step_out", count: n}
	case 'd':
		s.events <- userDisconnect{}
	default:
		s.handleGlobalKey(key)
	}
}

func (s *Session) handleGlobalKey(key adapter.Key) {
	if key.Code == 'q' || (key.Modifiers == adapter.ModControl && key.Code == 0x03) {
		s.mode = modeQuit
	}
}

func (s *Session) accumulatePrefix(digit rune) {
	s.numericPrefix = s.numericPrefix*10 + int(digit-'0')
	if s.numericPrefix > s.cfg.MotionPrefixMax {
		s.numericPrefix = s.cfg.MotionPrefixMax
	}
}

func (s *Session) consumePrefix() int {
	n := s.numericPrefix
	s.numericPrefix = 0
	if n == 0 {
		return 1
	}
	return n
}

func (s *Session) startScheduler(req continuationRequest) {
	if s.schedulerStop != nil {
		s.schedulerStop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.schedulerCtx, s.schedulerStop = ctx, cancel
	go runScheduler(ctx, s.client, s.lock, s.notifier, req, s.events)
}

func (s *Session) buildSnapshot(req snapshotRequested) {
	var opts []snapshot.Option
	if s.hasPendingEval {
		opts = append(opts, snapshot.WithPendingEval(s.pendingEval))
		s.pendingEval, s.hasPendingEval = "", false
	}
	go func() {
		entry, err := s.builder.Build(opts...)
		s.events <- snapshotBuilt{entry: entry, err: err}
	}()
}

func (s *Session) onSnapshotBuilt(ev snapshotBuilt) {
	defer s.notifier.signal()

	if ev.err != nil {
		logger.Error("snapshot build failed", logger.Err(ev.err))
		s.notification = "snapshot failed: " + ev.err.Error()
		return
	}
	s.hist.Push(ev.entry)
	s.selectedFrame = 0
}

func (s *Session) onScheduleDone(ev scheduleDone) {
	if ev.final != nil && ev.final.Status == xml.StatusStopping {
		s.disconnect()
		return
	}
	s.notification = "stopped: " + ev.reason
}

func (s *Session) onCursorMoved(ev cursorMoved) {
	s.selectedFrame = ev.frame
	entry, ok := s.hist.Current()
	if !ok {
		return
	}
	if err := s.builder.BackfillFrame(entry, ev.frame); err != nil {
		logger.Warn("context backfill failed", logger.Err(err))
	}
}

func (s *Session) disconnect() {
	if s.schedulerStop != nil {
		s.schedulerStop()
		s.schedulerStop = nil
	}
	_ = s.client.Disconnect()
	if s.connConn != nil {
		s.connConn.Close()
		s.connConn = nil
	}
	s.proc.Stop()
	s.bus.Reset()
	s.mode = ui.ModeRefusing
	s.notification = "disconnected"
}

func (s *Session) render() {
	if s.renderer == nil {
		return
	}
	snap := ui.UiSnapshot{
		Mode:             s.mode,
		ListenAddr:       s.cfg.Listen,
		SelectedFrame:    s.selectedFrame,
		ActiveDialog:     s.activeDialog,
		Notification:     s.notification,
		HistoryLen:       s.hist.Len(),
		HistoryIsCurrent: s.hist.IsCurrent(),
		SupportsAsync:    s.supportsAsync,
	}
	if entry, ok := s.hist.Current(); ok {
		snap.CurrentEntry = entry
	}
	s.renderer.Render(snap)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
