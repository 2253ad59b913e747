package realtime

import (
	"time"

	"github.com/jonathanprocter/practice-intelligently-sub010/internal/domain"
)

// outboundQueue is the pending-message buffer for one connection. FIFO order
// is preserved end-to-end: push order equals take order equals wire order.
// Timer bookkeeping lives on connState; the hub orchestrates flushes.
type outboundQueue struct {
	messages  []domain.OutboundMessage
	lastFlush time.Time
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{}
}

func (q *outboundQueue) push(m domain.OutboundMessage) {
	q.messages = append(q.messages, m)
}

// take removes and returns up to n messages from the front of the queue.
func (q *outboundQueue) take(n int) []domain.OutboundMessage {
	if n > len(q.messages) {
		n = len(q.messages)
	}
	out := q.messages[:n:n]
	q.messages = q.messages[n:]
	if len(q.messages) == 0 {
		q.messages = nil
	}
	return out
}

func (q *outboundQueue) depth() int {
	return len(q.messages)
}

// drop discards all pending messages. Used during teardown.
func (q *outboundQueue) drop() {
	q.messages = nil
}
