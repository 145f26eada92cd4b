package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stored_images"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	s := openStore(t)
	if info, err := os.Stat(s.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("store directory not created: %v", err)
	}
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestSaveNamesAndCollisions(t *testing.T) {
	s := openStore(t)
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	first, err := s.Save("drawing.jpg", "image/jpeg", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.Filename != "drawing_1700000000123.jpg" {
		t.Fatalf("unexpected filename %q", first.Filename)
	}
	if first.Size != 3 || first.OriginalName != "drawing.jpg" || first.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected metadata %+v", first)
	}

	second, err := s.Save("drawing.jpg", "image/jpeg", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if second.Filename != "drawing_1700000000124.jpg" {
		t.Fatalf("collision should bump the stamp, got %q", second.Filename)
	}
	data, _ := os.ReadFile(first.Path)
	if string(data) != "one" {
		t.Fatalf("first upload was overwritten: %q", data)
	}
}

func TestSaveSanitisesName(t *testing.T) {
	s := openStore(t)
	s.now = func() time.Time { return time.UnixMilli(5) }
	got, err := s.Save(`..\..\evil/../x.png`, "image/png", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "x_5.png" || filepath.Dir(got.Path) != s.Dir() {
		t.Fatalf("name escaped the store: %+v", got)
	}
	got, _ = s.Save("", "image/png", strings.NewReader("x"))
	if !strings.HasPrefix(got.Filename, "drawing_") {
		t.Fatalf("empty name should get a default base, got %q", got.Filename)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	s := openStore(t)
	if _, err := s.Save("notes.txt", "text/plain", strings.NewReader("hi")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestListFiltersExtensions(t *testing.T) {
	s := openStore(t)
	for _, name := range []string{"b.png", "a.JPG", "c.webp", "notes.txt", "d.gif", "e.bmp", "f.jpeg"} {
		if err := os.WriteFile(filepath.Join(s.Dir(), name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	os.Mkdir(filepath.Join(s.Dir(), "sub.png"), 0755)

	images, err := s.List("http://kiosk:5260/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(images) != 6 {
		t.Fatalf("expected 6 images, got %d: %+v", len(images), images)
	}
	if images[0].Filename != "a.JPG" || images[0].URL != "http://kiosk:5260/images/a.JPG" {
		t.Fatalf("unexpected first image %+v", images[0])
	}
	if images[0].Path != filepath.Join(s.Dir(), "a.JPG") || images[0].Size != 1 {
		t.Fatalf("unexpected path/size %+v", images[0])
	}
}

func TestListMissingDirectoryIsEmpty(t *testing.T) {
	s := openStore(t)
	os.RemoveAll(s.Dir())
	images, err := s.List("http://x")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if images == nil || len(images) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", images)
	}
}

func TestPruneAndRetention(t *testing.T) {
	s := openStore(t)
	now := time.Now()
	old := filepath.Join(s.Dir(), "old.png")
	fresh := filepath.Join(s.Dir(), "fresh.png")
	keep := filepath.Join(s.Dir(), "old.txt")
	for _, p := range []string{old, fresh, keep} {
		os.WriteFile(p, []byte("x"), 0644)
	}
	os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	os.Chtimes(keep, now.Add(-48*time.Hour), now.Add(-48*time.Hour))

	r, err := NewRetention(s, 24*time.Hour, "@hourly")
	if err != nil {
		t.Fatalf("NewRetention: %v", err)
	}
	r.now = func() time.Time { return now }
	if n := r.Run(); n != 1 {
		t.Fatalf("expected 1 pruned file, got %d", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old image should be removed")
	}
	for _, p := range []string{fresh, keep} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should survive: %v", p, err)
		}
	}
	r.Start()
	r.Stop()

	if _, err := NewRetention(s, time.Hour, "every tuesday"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if _, err := NewRetention(s, 0, "@hourly"); err == nil {
		t.Fatal("expected error for zero retention")
	}
}
