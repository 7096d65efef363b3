package session

import "sync"

// clientLock serializes the continuation commands the scheduler
// background task issues against the protocol client. Snapshot
// stack/context/eval/source fetches do not take it; they rely on the
// client's own internal mutex, which serializes every request/reply
// pair (spec §5).
type clientLock struct {
	mu sync.Mutex
}

func (l *clientLock) Lock()   { l.mu.Lock() }
func (l *clientLock) Unlock() { l.mu.Unlock() }
