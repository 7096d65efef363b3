package session

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// snapshotNotifier is a binary semaphore rendezvous: the continuation
// scheduler waits on it before issuing each iteration, and the event
// loop's snapshot handler signals it once an entry has finished
// building and been pushed into history (spec §4.J "the hard part").
//
// It starts fully held (no signal pending); the scheduler's entry
// point releases it once so the first iteration proceeds immediately.
type snapshotNotifier struct {
	sem *semaphore.Weighted
}

func newSnapshotNotifier() *snapshotNotifier {
	n := &snapshotNotifier{sem: semaphore.NewWeighted(1)}
	// Acquire what's available so the semaphore starts in the
	// "no signal pending" state; the first signal() call below
	// releases this and lets the first wait() through.
	_ = n.sem.Acquire(context.Background(), 1)
	return n
}

// signal marks one snapshot as complete (or, for non-Break
// continuation replies, that no snapshot was needed). Signaling while
// a signal is already pending leaves exactly one pending.
func (n *snapshotNotifier) signal() {
	if n.sem.TryAcquire(1) {
		// A signal was already pending; put it back unchanged.
		n.sem.Release(1)
		return
	}
	n.sem.Release(1)
}

// wait blocks until signal has been called since the last wait, or
// until ctx is done.
func (n *snapshotNotifier) wait(ctx context.Context) error {
	return n.sem.Acquire(ctx, 1)
}
