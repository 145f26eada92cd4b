// Package store keeps submitted drawings on disk and serves them over HTTP.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotImage is returned for uploads whose MIME type is not image/*.
	ErrNotImage = errors.New("only image files may be uploaded")
	// ErrTooLarge is returned for uploads above the size limit.
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	// ErrNoFile is returned when the upload carries no image part.
	ErrNoFile = errors.New("no file uploaded")
)

// DefaultMaxUpload is the per-file upload limit.
const DefaultMaxUpload = 10 << 20

// Extensions lists the file types returned by List.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// Image describes a stored drawing as returned by /getImages.
type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Size     int64  `json:"size,omitempty"`
}

// Stored describes a file accepted by /storeImage.
type Stored struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	MIMEType     string `json:"mimetype"`
}

// Store is a flat directory of image files.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// Open creates dir if needed and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory not set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		slog.Info("created store directory", "dir", abs)
	}
	return &Store{dir: abs, now: time.Now}, nil
}

// Dir returns the absolute store directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data under "<base>_<unixmillis><ext>", where base and ext come
// from originalName. A name already taken moves the stamp forward by one
// millisecond until a free name is found.
func (s *Store) Save(originalName, mimeType string, r io.Reader) (Stored, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return Stored{}, ErrNotImage
	}
	base, ext := splitName(originalName)

	s.mu.Lock()
	stamp := s.now().UnixMilli()
	var f *os.File
	var name string
	for {
		name = base + "_" + strconv.FormatInt(stamp, 10) + ext
		var err error
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			s.mu.Unlock()
			return Stored{}, fmt.Errorf("create %s: %w", name, err)
		}
		stamp++
	}
	s.mu.Unlock()

	path := f.Name()
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Stored{}, fmt.Errorf("write %s: %w", name, err)
	}
	return Stored{
		Filename:     name,
		OriginalName: originalName,
		Path:         path,
		Size:         n,
		MIMEType:     mimeType,
	}, nil
}

// List returns the stored images in filename order. baseURL prefixes each
// image URL as baseURL + "/images/" + filename. A missing directory yields
// an empty list.
func (s *Store) List(baseURL string) ([]Image, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Image{}, nil
		}
		return nil, err
	}
	baseURL = strings.TrimRight(baseURL, "/")
	images := make([]Image, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		img := Image{
			Filename: e.Name(),
			URL:      baseURL + "/images/" + e.Name(),
			Path:     filepath.Join(s.dir, e.Name()),
		}
		if info, err := e.Info(); err == nil {
			img.Size = info.Size()
		}
		images = append(images, img)
	}
	return images, nil
}

// Prune deletes image files last modified before cutoff and returns how
// many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// IsImageName reports whether name carries one of Extensions.
func IsImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func splitName(original string) (string, string) {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = "drawing"
	}
	return base, ext
}
