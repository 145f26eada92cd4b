package assets

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

// Embedded drawing templates and start screen artwork.
//
//go:embed templates/*.png start/*.png
var embedded embed.FS

var (
	loadStartOnce sync.Once
	loadStartErr  error
	startImages   []image.Image
)

// TemplateNames lists the embedded templates without their extension, sorted.
func TemplateNames() []string {
	entries, err := fs.ReadDir(embedded, "templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".png") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".png"))
	}
	sort.Strings(names)
	return names
}

// TemplatePNG returns a copy of the raw PNG bytes for the named template.
func TemplatePNG(name string) ([]byte, error) {
	data, err := embedded.ReadFile(path.Join("templates", name+".png"))
	if err != nil {
		return nil, fmt.Errorf("template %q not embedded", name)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Templates exposes the embedded template directory as a file system rooted
// at the template files.
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return embedded
	}
	return sub
}

func loadStart() {
	entries, err := fs.ReadDir(embedded, "start")
	if err != nil {
		loadStartErr = err
		return
	}
	for _, entry := range entries {
		data, err := embedded.ReadFile(path.Join("start", entry.Name()))
		if err != nil {
			loadStartErr = err
			return
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			loadStartErr = fmt.Errorf("decode %s: %w", entry.Name(), err)
			return
		}
		startImages = append(startImages, img)
	}
}

// StartImages returns the decoded start screen images in file name order.
func StartImages() ([]image.Image, error) {
	loadStartOnce.Do(loadStart)
	if loadStartErr != nil {
		return nil, loadStartErr
	}
	out := make([]image.Image, len(startImages))
	copy(out, startImages)
	return out, nil
}
