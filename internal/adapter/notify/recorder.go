package notify

import (
	"context"
	"sync"

	"github.com/rl1809/shoes-cart/internal/port"
)

const defaultCapacity = 64

// Recorder buffers messages until a UI drains them. When full, the oldest
// message is dropped so Notify never blocks.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	capacity int
	next     port.Notifier
}

// NewRecorder returns a Recorder that also forwards every message to next, if set.
func NewRecorder(capacity int, next port.Notifier) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{capacity: capacity, next: next}
}

func (r *Recorder) Notify(ctx context.Context, message string) {
	r.mu.Lock()
	if len(r.messages) == r.capacity {
		r.messages = r.messages[1:]
	}
	r.messages = append(r.messages, message)
	r.mu.Unlock()

	if r.next != nil {
		r.next.Notify(ctx, message)
	}
}

// Drain returns the buffered messages oldest first and clears the buffer.
func (r *Recorder) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.messages
	r.messages = nil
	if out == nil {
		return []string{}
	}
	return out
}
