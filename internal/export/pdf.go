// Package export renders stored drawings into a printable PDF contact sheet.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned when none of the entries could be placed on a page.
var ErrEmpty = errors.New("no images to export")

// Entry is one image on the sheet.
type Entry struct {
	Name string
	Data []byte
}

// Layout controls the grid. Zero values fall back to a 2x3 A4 portrait grid.
type Layout struct {
	Columns int
	Rows    int
	Title   string
	Margin  float64
}

func (l *Layout) setDefaults() {
	if l.Columns <= 0 {
		l.Columns = 2
	}
	if l.Rows <= 0 {
		l.Rows = 3
	}
	if l.Margin <= 0 {
		l.Margin = 12
	}
	if l.Title == "" {
		l.Title = "Drawing showcase " + time.Now().Format("2006-01-02")
	}
}

const captionHeight = 6.0

// ContactSheet writes a PDF with one grid cell per entry. Entries that cannot
// be decoded are skipped and counted.
func ContactSheet(w io.Writer, entries []Entry, layout Layout) (placed, skipped int, err error) {
	layout.setDefaults()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(layout.Title, true)
	pdf.SetCreator("doodlekiosk", true)
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetAutoPageBreak(false, layout.Margin)

	pageW, pageH := pdf.GetPageSize()
	headerH := 10.0
	cellW := (pageW - 2*layout.Margin) / float64(layout.Columns)
	cellH := (pageH - 2*layout.Margin - headerH) / float64(layout.Rows)
	perPage := layout.Columns * layout.Rows

	for _, e := range entries {
		opts, data, err := imageOptions(e)
		if err != nil {
			slog.Warn("skip image in contact sheet", "name", e.Name, "error", err)
			skipped++
			continue
		}
		slot := placed % perPage
		if slot == 0 {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "B", 14)
			pdf.CellFormat(0, headerH, layout.Title, "", 1, "L", false, 0, "")
		}
		col, row := slot%layout.Columns, slot/layout.Columns
		x := layout.Margin + float64(col)*cellW
		y := layout.Margin + headerH + float64(row)*cellH

		key := fmt.Sprintf("img%d", placed)
		info := pdf.RegisterImageOptionsReader(key, opts, bytes.NewReader(data))
		if !pdf.Ok() || info == nil {
			return placed, skipped, fmt.Errorf("register %s: %w", e.Name, pdf.Error())
		}
		w, h := fit(info.Width(), info.Height(), cellW-4, cellH-captionHeight-4)
		pdf.ImageOptions(key, x+(cellW-w)/2, y+2, w, h, false, opts, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetXY(x, y+cellH-captionHeight)
		pdf.CellFormat(cellW, captionHeight, e.Name, "", 0, "C", false, 0, "")
		placed++
	}
	if placed == 0 {
		return 0, skipped, ErrEmpty
	}
	if err := pdf.Output(w); err != nil {
		return placed, skipped, fmt.Errorf("write pdf: %w", err)
	}
	return placed, skipped, nil
}

// ContactSheetFile writes the sheet to path, removing it on failure.
func ContactSheetFile(path string, entries []Entry, layout Layout) (placed, skipped int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, err
	}
	placed, skipped, err = ContactSheet(f, entries, layout)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return placed, skipped, err
}

// LoadEntries reads each path into an Entry named after its base name.
func LoadEntries(paths []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: filepath.Base(p), Data: data})
	}
	return entries, nil
}

// imageOptions returns the gofpdf image type for an entry. Formats gofpdf
// cannot embed directly are re-encoded as PNG.
func imageOptions(e Entry) (gofpdf.ImageOptions, []byte, error) {
	img, format, err := image.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return gofpdf.ImageOptions{}, nil, err
	}
	switch format {
	case "jpeg":
		return gofpdf.ImageOptions{ImageType: "JPG"}, e.Data, nil
	case "png":
		return gofpdf.ImageOptions{ImageType: "PNG"}, e.Data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return gofpdf.ImageOptions{}, nil, fmt.Errorf("re-encode %s: %w", strings.ToLower(format), err)
	}
	return gofpdf.ImageOptions{ImageType: "PNG"}, buf.Bytes(), nil
}

func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := min(maxW/w, maxH/h)
	return w * scale, h * scale
}
