package dataurl

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestEncodeDecodeImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{10, 20, 30, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	url := Encode("image/png", buf.Bytes())
	mime, data, err := Decode(url)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(data, buf.Bytes()) {
		t.Fatalf("round trip mismatch: %q", mime)
	}

	out, err := DecodeImage(url)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if out.Bounds().Size() != image.Pt(3, 2) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "hello", "data:image/png,plain", "data:image/png;base64,@@@"} {
		if _, _, err := Decode(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) = %v, want ErrMalformed", s, err)
		}
	}
	if _, err := DecodeImage(Encode("image/png", []byte("not a png"))); err == nil {
		t.Error("expected image decode error")
	}
}
