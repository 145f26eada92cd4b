package handoff

import (
	"context"
	"log/slog"
	"sync"
)

// Memory is an in-process slot. The package-level Shared instance is the
// same-context fallback used when no cross-process transport works.
type Memory struct {
	mu        sync.Mutex
	data      []byte
	nextID    int
	observers map[int]func()
}

// Shared is the process-global slot.
var Shared = NewMemory()

// NewMemory returns an isolated in-memory slot.
func NewMemory() *Memory {
	return &Memory{observers: make(map[int]func())}
}

// Publish implements Channel.
func (s *Memory) Publish(_ context.Context, m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	checks := make([]func(), 0, len(s.observers))
	for _, check := range s.observers {
		checks = append(checks, check)
	}
	s.mu.Unlock()
	for _, check := range checks {
		check()
	}
	return nil
}

// Observe implements Channel.
func (s *Memory) Observe(ctx context.Context, fn func(Message)) (func(), error) {
	deliver := deliverOnce(fn)
	check := func() {
		data := s.take()
		if data == nil {
			return
		}
		m, err := Parse(data)
		if err != nil {
			slog.Warn("discarding malformed hand-off message", "transport", "memory", "error", err)
			return
		}
		deliver(m)
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = check
	s.mu.Unlock()

	check()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
	if ctx == nil {
		return remove, nil
	}
	release := context.AfterFunc(ctx, remove)
	return func() {
		release()
		remove()
	}, nil
}

// Pending reports whether the slot holds an undelivered message.
func (s *Memory) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

func (s *Memory) take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.data
	s.data = nil
	return data
}

