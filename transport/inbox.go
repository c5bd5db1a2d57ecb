package transport

import "sync"

// Inbox is an unbounded FIFO feeding a receive channel. Adapters push from
// their network goroutines without ever blocking on a slow consumer, and the
// consumer reads in push order.
type Inbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool

	out  chan Message
	wake chan struct{}
	done chan struct{}
}

func NewInbox() *Inbox {
	in := &Inbox{
		out:  make(chan Message, 64),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go in.pump()
	return in
}

// Push queues msg for delivery. Pushes after Close are dropped.
func (in *Inbox) Push(msg Message) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.queue = append(in.queue, msg)
	in.mu.Unlock()
	select {
	case in.wake <- struct{}{}:
	default:
	}
}

func (in *Inbox) C() <-chan Message { return in.out }

// Close stops delivery and closes the receive channel. Queued messages that
// were not yet received are discarded.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	close(in.done)
}

func (in *Inbox) pump() {
	defer close(in.out)
	for {
		in.mu.Lock()
		batch := in.queue
		in.queue = nil
		in.mu.Unlock()

		for _, msg := range batch {
			select {
			case in.out <- msg:
			case <-in.done:
				return
			}
		}

		select {
		case <-in.wake:
		case <-in.done:
			return
		}
	}
}
