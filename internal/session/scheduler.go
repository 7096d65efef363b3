package session

import (
	"context"

	"github.com/marmos91/dbgpfront/internal/dbgp/xml"
)

// continuationIssuer is the subset of *dbgp.Client the scheduler
// needs, guarded by the caller's exclusive lock around every call
// (spec §5 "single exclusive lock around the protocol client").
type continuationIssuer interface {
	Run() (*xml.Continuation, error)
	StepInto() (*xml.Continuation, error)
	StepOver() (*xml.Continuation, error)
	StepOut() (*xml.Continuation, error)
}

// runScheduler drives req.count continuation iterations, serializing
// with the event loop's snapshot builds via notifier, and reporting
// its outcome back onto out (spec §4.J "Continuation scheduler").
func runScheduler(ctx context.Context, client continuationIssuer, lock *clientLock, notifier *snapshotNotifier, req continuationRequest, out chan<- event) {
	notifier.signal() // step 1: first iteration may proceed immediately

	var final *xml.Continuation
	for i := 0; i < req.count; i++ {
		if err := notifier.wait(ctx); err != nil {
			return
		}

		cont, err := issueOne(lock, client, req.kind)
		if err != nil {
			out <- transportFailed{err: err}
			return
		}
		final = cont

		switch cont.Status {
		case xml.StatusBreak:
			out <- snapshotRequested{}
			// notifier is signaled by the event loop's snapshot
			// handler once the entry has been built and pushed.
		case xml.StatusStopping:
			out <- scheduleDone{final: final, reason: cont.Reason}
			return
		default:
			notifier.signal() // no snapshot needed; proceed immediately
		}
	}

	out <- scheduleDone{final: final, reason: reasonOf(final)}
}

func reasonOf(c *xml.Continuation) string {
	if c == nil {
		return ""
	}
	return c.Reason
}

func issueOne(lock *clientLock, client continuationIssuer, kind string) (*xml.Continuation, error) {
	lock.Lock()
	defer lock.Unlock()

	switch kind {
	case "run":
		return client.Run()
	case "step_into":
		return client.StepInto()
	case "step_over":
		return client.StepOver()
	case "step_out":
		return client.StepOut()
	default:
		return nil, errUnknownContinuationKind(kind)
	}
}

type errUnknownContinuationKind string

func (e errUnknownContinuationKind) Error() string {
	return "session: unknown continuation kind " + string(e)
}
