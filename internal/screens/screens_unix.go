//go:build linux || freebsd || openbsd || netbsd || dragonfly

package screens

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
)

type x11Backend struct{}

func newBackend() platformBackend {
	return x11Backend{}
}

// Wayland reports whether the session looks like a Wayland desktop, where
// RandR only sees the XWayland layout.
func Wayland() bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")), "wayland") {
		return true
	}
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

func (x11Backend) ListMonitors() ([]Monitor, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect X server: %w", err)
	}
	defer conn.Close()

	setup := xproto.Setup(conn)
	if setup == nil {
		return nil, fmt.Errorf("xproto setup unavailable")
	}
	screen := setup.DefaultScreen(conn)
	if screen == nil {
		return nil, fmt.Errorf("xproto screen unavailable")
	}
	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("init randr: %w", err)
	}

	monitors, err := outputs(conn, screen.Root)
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}
	return monitors, nil
}

// outputs lists connected RandR outputs that drive a CRTC.
func outputs(conn *xgb.Conn, root xproto.Window) ([]Monitor, error) {
	res, err := randr.GetScreenResources(conn, root).Reply()
	if err != nil {
		return nil, fmt.Errorf("randr screen resources: %w", err)
	}
	var primaryOutput randr.Output
	if primary, err := randr.GetOutputPrimary(conn, root).Reply(); err == nil {
		primaryOutput = primary.Output
	}
	monitors := make([]Monitor, 0, len(res.Outputs))
	for _, output := range res.Outputs {
		info, err := randr.GetOutputInfo(conn, output, res.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		crtc, err := randr.GetCrtcInfo(conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		x, y := int(crtc.X), int(crtc.Y)
		monitors = append(monitors, Monitor{
			Index:   len(monitors),
			Name:    strings.TrimSpace(string(info.Name)),
			Rect:    image.Rect(x, y, x+int(crtc.Width), y+int(crtc.Height)),
			Primary: output == primaryOutput,
		})
	}
	return monitors, nil
}

func (x11Backend) MoveWindow(title string, rect image.Rectangle) error {
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("connect X server: %w", err)
	}
	defer conn.Close()

	setup := xproto.Setup(conn)
	if setup == nil {
		return fmt.Errorf("xproto setup unavailable")
	}
	root := setup.DefaultScreen(conn).Root
	win, err := findWindow(conn, root, title)
	if err != nil {
		return err
	}
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(rect.Min.X), uint32(rect.Min.Y), uint32(rect.Dx()), uint32(rect.Dy())}
	return xproto.ConfigureWindowChecked(conn, win, mask, values).Check()
}

// findWindow searches the window manager's client list for a window whose
// title matches exactly.
func findWindow(conn *xgb.Conn, root xproto.Window, title string) (xproto.Window, error) {
	listAtom, err := internAtom(conn, "_NET_CLIENT_LIST")
	if err != nil {
		return 0, err
	}
	reply, err := xproto.GetProperty(conn, false, root, listAtom, xproto.AtomWindow, 0, 1<<16).Reply()
	if err != nil {
		return 0, fmt.Errorf("client list: %w", err)
	}
	for i := 0; i+4 <= len(reply.Value) && i/4 < int(reply.ValueLen); i += 4 {
		win := xproto.Window(xgb.Get32(reply.Value[i:]))
		if windowTitle(conn, win) == title {
			return win, nil
		}
	}
	return 0, ErrWindowNotFound
}

func windowTitle(conn *xgb.Conn, win xproto.Window) string {
	if name, err := internAtom(conn, "_NET_WM_NAME"); err == nil {
		if utf8, err := internAtom(conn, "UTF8_STRING"); err == nil {
			if v := readProperty(conn, win, name, utf8); v != "" {
				return v
			}
		}
	}
	return readProperty(conn, win, xproto.AtomWmName, xproto.AtomString)
}

func readProperty(conn *xgb.Conn, win xproto.Window, prop, typ xproto.Atom) string {
	reply, err := xproto.GetProperty(conn, false, win, prop, typ, 0, 1<<16).Reply()
	if err != nil || reply.ValueLen == 0 {
		return ""
	}
	return strings.TrimRight(string(reply.Value), "\x00")
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern %s: %w", name, err)
	}
	return reply.Atom, nil
}
