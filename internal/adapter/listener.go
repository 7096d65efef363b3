package adapter

import (
	"errors"
	"net"

	"github.com/marmos91/dbgpfront/internal/logger"
)

// Listener adapts a net.Listener into a stream of ListenerEvent values.
type Listener struct {
	ln     net.Listener
	events chan ListenerEvent
}

// NewListener binds addr and returns a Listener ready to Run.
func NewListener(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, events: make(chan ListenerEvent, 8)}, nil
}

// Events returns the channel Run publishes to.
func (l *Listener) Events() <-chan ListenerEvent { return l.events }

// Addr returns the bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Run accepts connections until Close is called, publishing
// ClientConnected for each and a final ListenerPanic on an
// unrecoverable accept error.
func (l *Listener) Run() {
	l.events <- Listening{Addr: l.Addr()}
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			logger.Debug("listener accept stopped", logger.Err(err))
			if !errors.Is(err, net.ErrClosed) {
				l.events <- ListenerPanic{Msg: err.Error()}
			}
			return
		}
		l.events <- ClientConnected{Conn: conn}
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
