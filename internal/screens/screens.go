// Package screens enumerates the attached monitors so each kiosk window can
// be placed on its own display.
package screens

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
)

type platformBackend interface {
	ListMonitors() ([]Monitor, error)
	MoveWindow(title string, rect image.Rectangle) error
}

var backend = newBackend()

// ErrNoMonitors is returned when the display server reports no outputs.
var ErrNoMonitors = errors.New("no monitors available")

// ErrWindowNotFound is returned by MoveWindow when no top-level window has
// the requested title.
var ErrWindowNotFound = errors.New("window not found")

// Monitor describes one connected output in the desktop layout.
type Monitor struct {
	Index   int
	Name    string
	Rect    image.Rectangle
	Primary bool
}

func (m Monitor) String() string {
	primary := ""
	if m.Primary {
		primary = " (primary)"
	}
	return fmt.Sprintf("#%d %s %dx%d+%d+%d%s", m.Index, m.Name, m.Rect.Dx(), m.Rect.Dy(), m.Rect.Min.X, m.Rect.Min.Y, primary)
}

// List returns the connected monitors in output order.
func List() ([]Monitor, error) {
	return backend.ListMonitors()
}

// Find resolves a selector against monitors. The selector is empty (first
// monitor), "primary", an index with or without a leading '#', or a case
// insensitive substring of the output name.
func Find(monitors []Monitor, selector string) (Monitor, error) {
	if len(monitors) == 0 {
		return Monitor{}, ErrNoMonitors
	}
	if selector == "" {
		return monitors[0], nil
	}
	lower := strings.ToLower(strings.TrimSpace(selector))
	if lower == "primary" {
		for _, mon := range monitors {
			if mon.Primary {
				return mon, nil
			}
		}
		return monitors[0], nil
	}
	lower = strings.TrimPrefix(lower, "#")
	if idx, err := strconv.Atoi(lower); err == nil {
		if idx < 0 || idx >= len(monitors) {
			return Monitor{}, fmt.Errorf("monitor index %d out of range", idx)
		}
		return monitors[idx], nil
	}
	for _, mon := range monitors {
		if strings.Contains(strings.ToLower(mon.Name), lower) {
			return mon, nil
		}
	}
	return Monitor{}, fmt.Errorf("monitor %q not found", selector)
}

// Placement returns the rectangle a kiosk window should cover for selector.
// When monitors cannot be listed or the selector does not match, it logs
// the reason and returns a fallback-sized rectangle at the origin.
func Placement(selector string, fallback image.Point) image.Rectangle {
	monitors, err := List()
	if err == nil {
		var mon Monitor
		mon, err = Find(monitors, selector)
		if err == nil {
			return mon.Rect
		}
	}
	slog.Warn("monitor placement unavailable, using default size", "selector", selector, "size", fallback, "error", err)
	return image.Rectangle{Max: fallback}
}

// MoveWindow moves and resizes the top-level window titled title so it
// covers rect.
func MoveWindow(title string, rect image.Rectangle) error {
	return backend.MoveWindow(title, rect)
}
