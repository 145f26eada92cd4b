package canvas

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TemplateSource yields the encoded bytes of a template image.
type TemplateSource interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileTemplate string

// FileTemplate reads a template from disk.
func FileTemplate(path string) TemplateSource { return fileTemplate(path) }

func (f fileTemplate) Name() string                 { return filepath.Base(string(f)) }
func (f fileTemplate) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

type fsTemplate struct {
	fsys fs.FS
	name string
}

// FSTemplate reads a template from a file system such as an embed.FS.
func FSTemplate(fsys fs.FS, name string) TemplateSource { return fsTemplate{fsys, name} }

func (f fsTemplate) Name() string                 { return f.name }
func (f fsTemplate) Open() (io.ReadCloser, error) { return f.fsys.Open(f.name) }

type bytesTemplate struct {
	name string
	data []byte
}

// BytesTemplate wraps already loaded template bytes.
func BytesTemplate(name string, data []byte) TemplateSource { return bytesTemplate{name, data} }

func (b bytesTemplate) Name() string { return b.name }
func (b bytesTemplate) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func decodeTemplate(src TemplateSource) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("canvas: nil template source")
	}
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", src.Name(), err)
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", src.Name(), err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode template %s: empty image", src.Name())
	}
	return img, nil
}
