package session

// outboundQueue buffers messages that cannot be sent yet. It is a bounded
// FIFO with oldest-drop eviction: buffering current UI state is best-effort,
// never blocking. Callers must hold the session mutex.
type outboundQueue struct {
	max   int
	items []*Message
}

func newOutboundQueue(max int) *outboundQueue {
	return &outboundQueue{max: max}
}

// push appends a message, evicting and returning the oldest entry when full.
func (q *outboundQueue) push(m *Message) (evicted *Message) {
	if len(q.items) >= q.max {
		evicted = q.items[0]
		q.items = append(q.items[:0], q.items[1:]...)
	}
	q.items = append(q.items, m)
	return evicted
}

// pushFront re-queues messages whose flush was interrupted, ahead of anything
// enqueued meanwhile. Oldest entries are evicted if the result exceeds the
// bound. Returns the number evicted.
func (q *outboundQueue) pushFront(ms []*Message) int {
	q.items = append(append([]*Message(nil), ms...), q.items...)
	if over := len(q.items) - q.max; over > 0 {
		q.items = append([]*Message(nil), q.items[over:]...)
		return over
	}
	return 0
}

// drain empties the queue and returns the entries in enqueue order.
func (q *outboundQueue) drain() []*Message {
	out := q.items
	q.items = nil
	return out
}

func (q *outboundQueue) len() int {
	return len(q.items)
}
