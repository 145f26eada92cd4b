//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package screens

import (
	"fmt"
	"image"
)

type unsupportedBackend struct{}

func newBackend() platformBackend {
	return unsupportedBackend{}
}

// Wayland is always false off the X11 platforms.
func Wayland() bool { return false }

func (unsupportedBackend) ListMonitors() ([]Monitor, error) {
	return nil, fmt.Errorf("monitor listing is not supported on this platform")
}

func (unsupportedBackend) MoveWindow(string, image.Rectangle) error {
	return fmt.Errorf("window placement is not supported on this platform")
}
