package notify

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/doodlekiosk/internal/platform"
)

type sent struct {
	title, body string
	opts        platform.Options
	iconExisted bool
}

func capture(n *Notifier) *[]sent {
	var out []sent
	n.send = func(title, body string, opts platform.Options) error {
		s := sent{title: title, body: body, opts: opts}
		if opts.IconPath != "" {
			_, err := os.Stat(opts.IconPath)
			s.iconExisted = err == nil
		}
		out = append(out, s)
		return nil
	}
	return &out
}

func TestDisabledEventsAreSilent(t *testing.T) {
	n := New(DefaultPreferences())
	got := capture(n)
	n.Stored("a.jpg")
	n.Received("hi", nil)
	n.Copied("x")
	if len(*got) != 0 {
		t.Fatalf("expected no notifications, got %d", len(*got))
	}
	var nilNotifier *Notifier
	nilNotifier.Enable(EventStored, true)
	nilNotifier.Stored("a.jpg")
}

func TestStoredUsesFileAsIcon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drawing_1.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	n := New(DefaultPreferences())
	n.Enable(EventStored, true)
	got := capture(n)
	n.Stored(path)
	if len(*got) != 1 {
		t.Fatalf("expected one notification, got %d", len(*got))
	}
	s := (*got)[0]
	if s.title != "Doodle Kiosk" || s.body != "Stored drawing_1.jpg" {
		t.Fatalf("unexpected notification %+v", s)
	}
	if s.opts.IconPath != path {
		t.Fatalf("expected icon %q, got %q", path, s.opts.IconPath)
	}
}

func TestReceivedPreviewIsCleanedUp(t *testing.T) {
	n := New(DefaultPreferences())
	n.Enable(EventReceived, true)
	got := capture(n)
	n.Received("", image.NewRGBA(image.Rect(0, 0, 3, 3)))
	if len(*got) != 1 {
		t.Fatalf("expected one notification, got %d", len(*got))
	}
	s := (*got)[0]
	if !s.iconExisted {
		t.Fatal("preview should exist while the notification is sent")
	}
	if _, err := os.Stat(s.opts.IconPath); !os.IsNotExist(err) {
		t.Fatalf("preview should be removed afterwards, stat err %v", err)
	}
	if s.body != "New drawing: drawing" {
		t.Fatalf("unexpected body %q", s.body)
	}
}

func TestLoadPreferencesFromEnv(t *testing.T) {
	t.Setenv("DOODLEKIOSK_NOTIFY_TITLE", "Gallery")
	t.Setenv("DOODLEKIOSK_NOTIFY_COPIED_TEXT", "Link ready")
	prefs := LoadPreferences()
	if prefs.Title != "Gallery" {
		t.Fatalf("unexpected title %q", prefs.Title)
	}
	n := New(prefs)
	n.Enable(EventCopied, true)
	got := capture(n)
	n.Copied("")
	if (*got)[0].body != "Link ready" {
		t.Fatalf("template without a verb should be used as is, got %q", (*got)[0].body)
	}
}

func TestSendErrorIsLogged(t *testing.T) {
	n := New(DefaultPreferences())
	n.Enable(EventCopied, true)
	n.send = func(string, string, platform.Options) error { return errors.New("no bus") }
	n.Copied("image")
}

func TestParseEvent(t *testing.T) {
	if e, ok := ParseEvent(" Stored "); !ok || e != EventStored {
		t.Fatalf("unexpected %q %v", e, ok)
	}
	if _, ok := ParseEvent("capture"); ok {
		t.Fatal("unknown event accepted")
	}
}
