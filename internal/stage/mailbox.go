package stage

import "sync"

// mailbox is the ordered, unbounded inbox of a stage. Posting never blocks,
// so neighbouring stages cannot deadlock on each other. Event volume through
// it stays bounded by demand.
type mailbox struct {
	mu     sync.Mutex
	queue  []any
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// post enqueues msg and reports false when the mailbox is closed.
func (m *mailbox) post(msg any) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns everything queued so far.
func (m *mailbox) take() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.queue
	m.queue = nil
	return batch
}

// close rejects further posts and returns what was still queued.
func (m *mailbox) close() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	rest := m.queue
	m.queue = nil
	return rest
}
