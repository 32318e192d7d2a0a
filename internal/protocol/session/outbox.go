package session

import (
	"context"
	"sync"
)

// Outbox is the unbounded FIFO of payloads waiting for a send pump. It is
// owned by a session, not a connection, so queued items survive reconnects.
// Push never blocks; Pop blocks until an item arrives or ctx ends.
type Outbox struct {
	mu     sync.Mutex
	items  []any
	notify chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{})}
}

// Push appends payload to the tail of the queue.
func (o *Outbox) Push(payload any) {
	o.mu.Lock()
	o.items = append(o.items, payload)
	wake := o.notify
	o.notify = make(chan struct{})
	o.mu.Unlock()
	close(wake)
}

// PushFront returns an item to the head of the queue, ahead of anything
// pushed since it was popped.
func (o *Outbox) PushFront(payload any) {
	o.mu.Lock()
	o.items = append([]any{payload}, o.items...)
	wake := o.notify
	o.notify = make(chan struct{})
	o.mu.Unlock()
	close(wake)
}

// Pop removes and returns the head of the queue.
func (o *Outbox) Pop(ctx context.Context) (any, error) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			item := o.items[0]
			o.items[0] = nil
			o.items = o.items[1:]
			o.mu.Unlock()
			return item, nil
		}
		wait := o.notify
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Snapshot returns a copy of the pending items in send order.
func (o *Outbox) Snapshot() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]any, len(o.items))
	copy(out, o.items)
	return out
}
