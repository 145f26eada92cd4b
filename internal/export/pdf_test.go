package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func sample(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, 15, color.RGBA{200, 0, 0, 255})
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70})
	case "png":
		err = png.Encode(&buf, img)
	case "bmp":
		err = bmp.Encode(&buf, img)
	}
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestContactSheet(t *testing.T) {
	entries := []Entry{
		{Name: "a.jpg", Data: sample(t, "jpeg")},
		{Name: "b.png", Data: sample(t, "png")},
		{Name: "c.bmp", Data: sample(t, "bmp")},
		{Name: "broken.png", Data: []byte("nope")},
	}
	var buf bytes.Buffer
	placed, skipped, err := ContactSheet(&buf, entries, Layout{Columns: 1, Rows: 2, Title: "test"})
	if err != nil {
		t.Fatalf("contact sheet: %v", err)
	}
	if placed != 3 || skipped != 1 {
		t.Fatalf("placed %d skipped %d", placed, skipped)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
	if n := bytes.Count(buf.Bytes(), []byte("/Type /Page\n")); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
}

func TestContactSheetEmpty(t *testing.T) {
	var buf bytes.Buffer
	if _, _, err := ContactSheet(&buf, nil, Layout{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestContactSheetFileRemovedOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.pdf")
	if _, _, err := ContactSheetFile(path, []Entry{{Name: "x", Data: []byte("x")}}, Layout{}); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("failed sheet should be removed")
	}
}

func TestLoadEntries(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	if err := os.WriteFile(p, sample(t, "png"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadEntries([]string{p})
	if err != nil || len(entries) != 1 || entries[0].Name != "a.png" {
		t.Fatalf("unexpected entries %v %v", entries, err)
	}
	if _, err := LoadEntries([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
