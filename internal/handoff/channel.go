package handoff

import (
	"context"
	"sync"
)

// Channel moves messages between the drawing screen and the main display.
//
// Publish overwrites the slot and notifies receivers. Observe invokes fn at
// most once per message, clears the slot after each delivery and checks the
// slot once on attach so a receiver that starts late still sees the last
// message. The returned stop function detaches the receiver.
type Channel interface {
	Publish(ctx context.Context, m Message) error
	Observe(ctx context.Context, fn func(Message)) (stop func(), err error)
}

const dedupeWindow = 64

// dedupe remembers recently delivered ids.
type dedupe struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	ring []string
}

func newDedupe() *dedupe {
	return &dedupe{ids: make(map[string]struct{}, dedupeWindow)}
}

// first reports whether id has not been seen before and records it.
func (d *dedupe) first(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ids[id]; ok {
		return false
	}
	d.ids[id] = struct{}{}
	d.ring = append(d.ring, id)
	if len(d.ring) > dedupeWindow {
		delete(d.ids, d.ring[0])
		d.ring = d.ring[1:]
	}
	return true
}

// deliverOnce wraps fn so repeated ids are dropped.
func deliverOnce(fn func(Message)) func(Message) {
	d := newDedupe()
	return func(m Message) {
		if d.first(m.ID) {
			fn(m)
		}
	}
}
