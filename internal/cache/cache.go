// Package cache persists the most recent drawing locally so the main display
// can pick it up even when no message reached it. Storage is tiered: each
// tier is tried only if the previous one failed.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
)

// DrawingKey is the slot the last submitted drawing is cached under.
const DrawingKey = "drawnCanvasImage"

var (
	// ErrNotFound is returned when no tier holds the key.
	ErrNotFound = errors.New("cache: not found")
	// ErrExhausted is returned when every tier failed to store a value.
	ErrExhausted = errors.New("cache: all tiers failed")
)

// Tier is a single storage backend.
type Tier interface {
	Name() string
	Put(key string, value []byte) error
	// Take returns the value and removes it. ErrNotFound when absent.
	Take(key string) ([]byte, error)
}

// Chain tries its tiers in order.
type Chain struct {
	tiers []Tier
}

// NewChain builds a chain from the given tiers, skipping nils.
func NewChain(tiers ...Tier) *Chain {
	c := &Chain{}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Put stores value in the first tier that accepts it and returns that tier's
// name. When every tier fails the joined errors wrap ErrExhausted.
func (c *Chain) Put(key string, value []byte) (string, error) {
	var errs []error
	for _, t := range c.tiers {
		err := t.Put(key, value)
		if err == nil {
			return t.Name(), nil
		}
		slog.Warn("cache tier rejected value", "tier", t.Name(), "key", key, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
	}
	return "", errors.Join(append([]error{ErrExhausted}, errs...)...)
}

// Take returns the value from the first tier holding key and clears key
// from every tier so it is consumed exactly once.
func (c *Chain) Take(key string) ([]byte, error) {
	var found []byte
	for _, t := range c.tiers {
		v, err := t.Take(key)
		switch {
		case err == nil:
			if found == nil {
				found = v
			}
		case errors.Is(err, ErrNotFound):
		default:
			slog.Warn("cache tier read failed", "tier", t.Name(), "key", key, "error", err)
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Tiers returns the names of the configured tiers in order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}
