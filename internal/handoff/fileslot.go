package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// FileSlot keeps the slot as a JSON file in a directory shared by both
// screens, which may run in separate processes.
type FileSlot struct {
	dir string
}

// NewFileSlot returns a file slot in dir.
func NewFileSlot(dir string) *FileSlot {
	return &FileSlot{dir: dir}
}

// Path returns the slot file path.
func (f *FileSlot) Path() string {
	return filepath.Join(f.dir, SlotKey+".json")
}

// Publish implements Channel. The file is replaced atomically so a reader
// never sees a partial payload.
func (f *FileSlot) Publish(_ context.Context, m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create slot dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("create slot temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close slot: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename slot: %w", err)
	}
	return nil
}

// Observe implements Channel. Changes are picked up through fsnotify on the
// slot directory.
func (f *FileSlot) Observe(ctx context.Context, fn func(Message)) (func(), error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch slot: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch slot dir: %w", err)
	}

	deliver := deliverOnce(fn)
	var checkMu sync.Mutex
	check := func() {
		checkMu.Lock()
		defer checkMu.Unlock()
		m, ok := f.claim()
		if ok {
			deliver(m)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != SlotKey+".json" {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					check()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("slot watcher error", "dir", f.dir, "error", err)
			}
		}
	}()

	check()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

// claim atomically takes ownership of the slot file, so that only one
// receiver ever reads a given payload, then parses and removes it.
func (f *FileSlot) claim() (Message, bool) {
	claimed := filepath.Join(f.dir, ".claim-"+uuid.NewString())
	if err := os.Rename(f.Path(), claimed); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("claim slot", "path", f.Path(), "error", err)
		}
		return Message{}, false
	}
	defer os.Remove(claimed)
	data, err := os.ReadFile(claimed)
	if err != nil {
		slog.Warn("read slot", "path", claimed, "error", err)
		return Message{}, false
	}
	m, err := Parse(data)
	if err != nil {
		slog.Warn("discarding malformed hand-off message", "transport", "file", "error", err)
		return Message{}, false
	}
	return m, true
}
