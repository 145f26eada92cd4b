package palette

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPalette(t *testing.T) {
	p := Default()
	if p.Len() != 12 {
		t.Fatalf("expected 12 colors, got %d", p.Len())
	}
	if got := p.At(0); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("unexpected first color %v", got)
	}
	if got := p.At(13); got != p.At(1) {
		t.Errorf("At should wrap, got %v", got)
	}
	found := false
	rc := p.Random()
	for _, c := range p.Colors() {
		if c == rc {
			found = true
		}
	}
	if !found {
		t.Errorf("random color %v is not in the palette", rc)
	}
}

func TestParseRoundTrip(t *testing.T) {
	input := `Palette: Pastel
# comment
Pink: #FFC0CB
Mint: #98FF9880
`
	p, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Name != "Pastel" || p.Len() != 2 {
		t.Fatalf("unexpected palette %+v", p)
	}
	if p.Entries[1].Color.A != 0x80 {
		t.Errorf("expected alpha 0x80, got %#x", p.Entries[1].Color.A)
	}

	again, err := Parse(strings.NewReader(Format(p)))
	if err != nil {
		t.Fatalf("Parse(Format) failed: %v", err)
	}
	for i := range p.Entries {
		if p.Entries[i] != again.Entries[i] {
			t.Errorf("entry %d mismatch: %+v vs %+v", i, p.Entries[i], again.Entries[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("Red: ff0000\n")); err == nil {
		t.Error("expected error for color without #")
	}
	if _, err := Parse(strings.NewReader("Palette: Empty\n")); err == nil {
		t.Error("expected error for empty palette")
	}
	if _, err := ParseColor("#12345"); err == nil {
		t.Error("expected error for bad hex length")
	}
}

func TestLoaderSearchOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mono.palette"), []byte("Black: #000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &Loader{ConfigDir: dir}
	p, err := l.Load("mono")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 color, got %d", p.Len())
	}
	if p, err := l.Load(""); err != nil || p.Len() != 12 {
		t.Fatalf("expected default palette, got %v %v", p, err)
	}
	if _, err := l.Load("missing"); err == nil {
		t.Fatal("expected error for missing palette")
	}
}
