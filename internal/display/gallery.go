package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Fetcher downloads the bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Gallery decodes carousel images in the background and keeps them for the
// renderer. A failed load is remembered so it is not retried every frame.
type Gallery struct {
	fetcher Fetcher
	onLoad  func()
	timeout time.Duration

	mu      sync.Mutex
	images  map[string]image.Image
	failed  map[string]error
	loading map[string]bool

	async func(func())
}

// NewGallery returns an empty gallery. onLoad is called after each image
// finishes loading.
func NewGallery(f Fetcher, onLoad func()) *Gallery {
	return &Gallery{
		fetcher: f,
		onLoad:  onLoad,
		timeout: 15 * time.Second,
		images:  make(map[string]image.Image),
		failed:  make(map[string]error),
		loading: make(map[string]bool),
		async:   func(fn func()) { go fn() },
	}
}

// Get returns the decoded image for url if it is ready, starting a load
// otherwise.
func (g *Gallery) Get(url string) (image.Image, bool) {
	g.mu.Lock()
	if img, ok := g.images[url]; ok {
		g.mu.Unlock()
		return img, true
	}
	if _, failed := g.failed[url]; failed || g.loading[url] {
		g.mu.Unlock()
		return nil, false
	}
	g.loading[url] = true
	g.mu.Unlock()

	g.async(func() { g.load(url) })
	return nil, false
}

// Retain drops every cached image whose URL is not in keep.
func (g *Gallery) Retain(keep []string) {
	set := make(map[string]bool, len(keep))
	for _, u := range keep {
		set[u] = true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for u := range g.images {
		if !set[u] {
			delete(g.images, u)
		}
	}
	for u := range g.failed {
		if !set[u] {
			delete(g.failed, u)
		}
	}
}

// Len returns the number of decoded images held.
func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.images)
}

func (g *Gallery) load(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	img, err := g.fetch(ctx, url)

	g.mu.Lock()
	delete(g.loading, url)
	if err != nil {
		g.failed[url] = err
	} else {
		g.images[url] = img
	}
	g.mu.Unlock()

	if err != nil {
		slog.Warn("load carousel image failed", "url", url, "error", err)
		return
	}
	if g.onLoad != nil {
		g.onLoad()
	}
}

func (g *Gallery) fetch(ctx context.Context, url string) (image.Image, error) {
	if g.fetcher == nil {
		return nil, fmt.Errorf("no fetcher for %s", url)
	}
	data, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}
