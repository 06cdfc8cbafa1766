package hub

import "sync"

// Member is one connection's outbound side: a bounded FIFO queue drained by
// the connection's write pump. The queue channel is never closed; Done is
// closed instead, so concurrent enqueues can never panic.
type Member struct {
	id    string
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func NewMember(id string, queueSize int) *Member {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Member{
		id:    id,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
}

func (m *Member) ID() string { return m.id }

// Events is drained by the member's write pump.
func (m *Member) Events() <-chan []byte { return m.queue }

// Done is closed when the member is closed or evicted.
func (m *Member) Done() <-chan struct{} { return m.done }

// Close is idempotent.
func (m *Member) Close() {
	m.once.Do(func() { close(m.done) })
}

// Enqueue offers a payload without blocking. It reports false when the
// member is closed or its queue is full; a full queue means the consumer is
// too slow and the member should be treated as disconnected.
func (m *Member) Enqueue(payload []byte) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.queue <- payload:
		return true
	case <-m.done:
		return false
	default:
		return false
	}
}
