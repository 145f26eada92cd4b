package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/doodlekiosk/assets"
	"github.com/example/doodlekiosk/internal/cache"
	"github.com/example/doodlekiosk/internal/canvas"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/config"
	"github.com/example/doodlekiosk/internal/discovery"
	"github.com/example/doodlekiosk/internal/display"
	"github.com/example/doodlekiosk/internal/handoff"
	"github.com/example/doodlekiosk/internal/notify"
	"github.com/example/doodlekiosk/internal/palette"
	"github.com/example/doodlekiosk/internal/session"
	"github.com/example/doodlekiosk/internal/store"
)

const discoverTimeout = 3 * time.Second

// resolveStoreURL returns the configured store URL. "auto" or an empty
// value browses mDNS for a store first.
func resolveStoreURL(ctx context.Context, cfg *config.Config) string {
	configured := strings.TrimSpace(cfg.Display.StoreURL)
	if configured != "" && !strings.EqualFold(configured, "auto") {
		return configured
	}
	return discovery.Resolve(ctx, "", fmt.Sprintf("http://localhost:%d", config.DefaultPort), discoverTimeout)
}

// relayURL derives the hub endpoint served next to the image store.
func relayURL(storeURL string) string {
	u := strings.TrimSuffix(storeURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/channel"
}

// openChannel builds the configured hand-off transport, wrapped so that a
// failing transport degrades to the in-process slot.
func openChannel(cfg *config.Config, storeURL string) handoff.Channel {
	var primary handoff.Channel
	switch strings.ToLower(strings.TrimSpace(cfg.Channel.Transport)) {
	case "memory":
		return handoff.Shared
	case "relay":
		u := cfg.Channel.RelayURL
		if u == "" {
			u = relayURL(storeURL)
		}
		slog.Info("hand-off via relay", "url", u)
		primary = handoff.NewRelay(u)
	default:
		slot := handoff.NewFileSlot(cfg.Channel.Dir)
		slog.Info("hand-off via file slot", "path", slot.Path())
		primary = slot
	}
	return handoff.WithFallback(primary)
}

func openCache(cfg *config.Config) (*cache.Chain, func()) {
	chain, closeFn := cache.Open(cfg.Cache.Path, cfg.Cache.Dir)
	slog.Debug("drawing cache ready", "tiers", chain.Tiers())
	return chain, closeFn
}

// loadTemplates returns the PNG or JPEG files in dir, or the embedded
// templates when dir is empty or has none.
func loadTemplates(dir string) []canvas.TemplateSource {
	var out []canvas.TemplateSource
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("template directory unreadable, using built-in templates", "dir", dir, "error", err)
		}
		var names []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".png" || ext == ".jpg" || ext == ".jpeg") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, canvas.FileTemplate(filepath.Join(dir, n)))
		}
	}
	if len(out) > 0 {
		return out
	}
	fsys := assets.Templates()
	for _, n := range assets.TemplateNames() {
		out = append(out, canvas.FSTemplate(fsys, n+".png"))
	}
	return out
}

func loadPalette(cfg *config.Config) *palette.Palette {
	p, err := palette.NewLoader().Load(cfg.Palette)
	if err != nil {
		slog.Warn("palette unavailable, using default", "palette", cfg.Palette, "error", err)
		return palette.Default()
	}
	return p
}

func newNotifier(cfg *config.Config) *notify.Notifier {
	n := notify.New(notify.LoadPreferences())
	n.Enable(notify.EventStored, cfg.Notify.Stored)
	n.Enable(notify.EventReceived, cfg.Notify.Received)
	n.Enable(notify.EventCopied, cfg.Notify.Copied)
	return n
}

func newSession(cfg *config.Config, ch handoff.Channel, c session.Cache, up session.Uploader) *session.Controller {
	k := cfg.Kiosk
	return session.New(session.Options{
		Clock:       clock.Real{},
		Channel:     ch,
		Cache:       c,
		Uploader:    up,
		Templates:   loadTemplates(k.TemplateDir),
		Width:       k.Width,
		Height:      k.Height,
		Brush:       canvas.Brush{Color: k.BrushColor, Width: k.BrushWidth},
		StepTimeout: k.StepTimeout,
		Quality:     k.JPEGQuality,
	})
}

func newDisplay(cfg *config.Config, ch handoff.Channel, c display.Taker, lister display.Lister) *display.Controller {
	d := cfg.Display
	return display.New(display.Options{
		Clock:            clock.Real{},
		Palette:          loadPalette(cfg),
		Lister:           lister,
		Channel:          ch,
		Cache:            c,
		CycleInterval:    d.CycleInterval,
		CarouselInterval: d.CarouselInterval,
		Transition:       d.Transition,
		MessageDuration:  d.MessageDuration,
		RefreshInterval:  d.RefreshInterval,
	})
}

// storeServer is the image store with its optional hub, retention and
// mDNS advertisement.
type storeServer struct {
	http      *http.Server
	store     *store.Store
	retention *store.Retention
}

func newStoreServer(cfg *config.Config, notifier *notify.Notifier) (*storeServer, error) {
	sc := cfg.Server
	st, err := store.Open(sc.StoreDir)
	if err != nil {
		return nil, err
	}
	srv := store.NewServer(st, store.Options{
		PublicURL:      sc.PublicURL,
		MaxUploadBytes: sc.MaxUploadBytes,
		Channel:        handoff.NewHub(),
		OnStored: func(s store.Stored) {
			notifier.Stored(s.Path)
		},
	})
	s := &storeServer{
		http:  &http.Server{Addr: sc.Addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second},
		store: st,
	}
	if sc.Retention > 0 {
		r, err := store.NewRetention(st, sc.Retention, sc.PruneSchedule)
		if err != nil {
			return nil, fmt.Errorf("retention: %w", err)
		}
		s.retention = r
	}
	return s, nil
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *storeServer) Serve(ctx context.Context, advertise bool) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	if s.retention != nil {
		s.retention.Start()
		defer s.retention.Stop()
	}
	if advertise {
		if port := listenPort(ln.Addr()); port > 0 {
			if adv, err := discovery.Advertise(port); err != nil {
				slog.Warn("mdns advertisement failed", "error", err)
			} else {
				defer adv.Shutdown()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("image store listening", "addr", ln.Addr().String(), "dir", s.store.Dir())
		errCh <- s.http.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("image store stopped")
	return nil
}

func listenPort(addr net.Addr) int {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}
