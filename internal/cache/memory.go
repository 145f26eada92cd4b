package cache

import "sync"

var (
	globalMu   sync.Mutex
	globalSlot = map[string][]byte{}
)

// Memory is the last-resort tier: a process-wide map that only survives as
// long as the process does.
type Memory struct{}

// Name implements Tier.
func (Memory) Name() string { return "memory" }

// Put implements Tier.
func (Memory) Put(key string, value []byte) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSlot[key] = append([]byte(nil), value...)
	return nil
}

// Take implements Tier.
func (Memory) Take(key string) ([]byte, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	v, ok := globalSlot[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(globalSlot, key)
	return v, nil
}
