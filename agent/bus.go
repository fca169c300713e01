package agent

import (
	"sync"

	"github.com/coordmesh/coordmesh/core"
)

// Bus is a single-writer broadcast channel for one agent's lifecycle and task
// messages. Multiple independent subscribers may attach; each receives every
// message published after it subscribed, in emission order. There is no
// replay for late subscribers and no back-pressure: publishing never blocks,
// each subscriber drains an unbounded queue at its own pace.
type Bus struct {
	mu          sync.Mutex
	subscribers []*subscriber
	closed      bool
}

type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []core.AgentMessage
	closed bool
	out    chan core.AgentMessage
}

func newSubscriber() *subscriber {
	s := &subscriber{out: make(chan core.AgentMessage)}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()
	return s
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, msg := range batch {
			s.out <- msg
		}
	}
}

func (s *subscriber) push(msg core.AgentMessage) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, msg)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// NewBus constructs an open Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe attaches a new reader and returns its message channel together
// with an unsubscribe function. The channel is closed after unsubscribe or
// bus close, once queued messages have been delivered.
func (b *Bus) Subscribe() (<-chan core.AgentMessage, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber()
	if b.closed {
		sub.stop()
		return sub.out, func() {}
	}
	b.subscribers = append(b.subscribers, sub)

	return sub.out, func() {
		b.mu.Lock()
		for i, s := range b.subscribers {
			if s == sub {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish broadcasts a message to every current subscriber. Publishing on a
// closed bus is a no-op.
func (b *Bus) Publish(msg core.AgentMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		sub.push(msg)
	}
}

// Close shuts the bus down. Queued messages are still delivered; subsequent
// publishes are no-ops. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		sub.stop()
	}
	b.subscribers = nil
}
