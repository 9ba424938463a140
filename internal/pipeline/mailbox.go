package pipeline

import "sync/atomic"

type job struct {
	gen uint64
	req Request
}

// mailbox holds only the newest submitted request. Older requests are
// overwritten, never queued. signal carries at most one wake-up.
type mailbox struct {
	latest atomic.Pointer[job]
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(j *job) {
	m.latest.Store(j)
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() *job { return m.latest.Swap(nil) }

func (m *mailbox) pending() bool { return m.latest.Load() != nil }
