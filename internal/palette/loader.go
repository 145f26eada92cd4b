package palette

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader handles loading palettes from various sources.
type Loader struct {
	ConfigDir string
	SystemDir string
}

// NewLoader creates a new Loader with standard paths.
func NewLoader() *Loader {
	home, _ := os.UserHomeDir()
	return &Loader{
		ConfigDir: filepath.Join(home, ".config", "doodlekiosk", "palettes"),
		SystemDir: "/usr/share/doodlekiosk/palettes",
	}
}

// Load resolves a palette by name or path.
// Order:
// 1. Empty or "default" returns the built-in palette.
// 2. An existing file path.
// 3. ConfigDir.
// 4. SystemDir.
func (l *Loader) Load(name string) (*Palette, error) {
	if name == "" || strings.EqualFold(name, "default") {
		return Default(), nil
	}

	if _, err := os.Stat(name); err == nil {
		return parseFile(name)
	}

	filename := name
	if !strings.HasSuffix(filename, ".palette") {
		filename += ".palette"
	}

	for _, dir := range []string{l.ConfigDir, l.SystemDir} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return parseFile(candidate)
		}
	}

	return nil, fmt.Errorf("palette '%s' not found", name)
}

func parseFile(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
