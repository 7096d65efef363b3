package adapter

import "time"

// Ticker adapts a time.Ticker into a stream of Tick input events.
type Ticker struct {
	ticker *time.Ticker
	events chan InputEvent
	done   chan struct{}
}

// NewTicker starts ticking every interval.
func NewTicker(interval time.Duration) *Ticker {
	t := &Ticker{
		ticker: time.NewTicker(interval),
		events: make(chan InputEvent, 1),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Events returns the channel ticks are published to.
func (t *Ticker) Events() <-chan InputEvent { return t.events }

func (t *Ticker) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.events <- Tick{}:
			default:
			}
		case <-t.done:
			return
		}
	}
}

// Stop halts ticking.
func (t *Ticker) Stop() {
	t.ticker.Stop()
	close(t.done)
}
