//go:build !((linux || freebsd || openbsd || netbsd || dragonfly) && cgo)

// Package clipboard copies kiosk images and links to the system clipboard.
package clipboard

import (
	"errors"
	"image"
)

var errUnsupported = errors.New("clipboard is not available in this build")

func WriteImage(image.Image) error { return errUnsupported }

func WriteText(string) error { return errUnsupported }

func ReadImage() (image.Image, error) { return nil, errUnsupported }
