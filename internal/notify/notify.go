// Package notify raises desktop notifications for kiosk events.
package notify

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/doodlekiosk/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventStored fires when the image store accepts an upload.
	EventStored Event = "stored"
	// EventReceived fires when the main display shows a hand-off drawing.
	EventReceived Event = "received"
	// EventCopied fires when an image is copied to the clipboard.
	EventCopied Event = "copied"
)

// Events lists every known event in display order.
var Events = []Event{EventStored, EventReceived, EventCopied}

// ParseEvent maps a name such as "stored" to its Event.
func ParseEvent(name string) (Event, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range Events {
		if string(e) == name {
			return e, true
		}
	}
	return "", false
}

// EventPreference describes formatting for a notification event.
type EventPreference struct {
	Template string
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "Doodle Kiosk",
		Events: map[Event]EventPreference{
			EventStored:   {Template: "Stored %s"},
			EventReceived: {Template: "New drawing: %s"},
			EventCopied:   {Template: "Copied %s to clipboard"},
		},
	}
}

// LoadPreferences applies DOODLEKIOSK_NOTIFY_* environment overrides to the
// defaults.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(os.Getenv("DOODLEKIOSK_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	for _, e := range Events {
		key := "DOODLEKIOSK_NOTIFY_" + strings.ToUpper(string(e)) + "_TEXT"
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			p := prefs.Events[e]
			p.Template = v
			prefs.Events[e] = p
		}
	}
	return prefs
}

// Notifier sends desktop notifications for the events it has enabled. A nil
// Notifier is valid and sends nothing.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	send    func(title, body string, opts platform.Options) error
}

// New creates a Notifier with every event disabled.
func New(prefs Preferences) *Notifier {
	cloned := Preferences{Title: prefs.Title, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), send: platform.Notify}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Stored announces a file written by the image store. The file itself is
// used as the notification icon.
func (n *Notifier) Stored(path string) {
	if !n.enabledFor(EventStored) {
		return
	}
	detail := filepath.Base(path)
	opts := platform.Options{}
	if abs, err := filepath.Abs(path); err == nil {
		if _, err := os.Stat(abs); err == nil {
			opts.IconPath = abs
		}
	}
	n.dispatch(EventStored, detail, opts)
}

// Received announces a drawing handed off to the main display, with a
// thumbnail preview when img is set.
func (n *Notifier) Received(note string, img image.Image) {
	if !n.enabledFor(EventReceived) {
		return
	}
	if strings.TrimSpace(note) == "" {
		note = "drawing"
	}
	opts := platform.Options{}
	if img != nil {
		if path, cleanup, err := createPreview(img); err != nil {
			slog.Warn("notification preview", "error", err)
		} else {
			defer cleanup()
			opts.IconPath = path
		}
	}
	n.dispatch(EventReceived, note, opts)
}

// Copied announces a clipboard copy.
func (n *Notifier) Copied(detail string) {
	if !n.enabledFor(EventCopied) {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = "image"
	}
	n.dispatch(EventCopied, detail, platform.Options{})
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	tmpl := strings.TrimSpace(n.prefs.Events[event].Template)
	if tmpl == "" {
		return
	}
	body := tmpl
	if strings.Contains(tmpl, "%") {
		body = fmt.Sprintf(tmpl, strings.TrimSpace(detail))
	}
	if err := n.send(n.prefs.Title, body, opts); err != nil {
		slog.Warn("notification failed", "event", event, "error", err)
	}
}

func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "doodlekiosk-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove preview", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}
