package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/doodlekiosk/assets"
	"github.com/example/doodlekiosk/internal/clipboard"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/config"
	"github.com/example/doodlekiosk/internal/kiosk"
	"github.com/example/doodlekiosk/internal/screens"
	"github.com/example/doodlekiosk/internal/store"
)

func init() {
	rootCmd.AddCommand(mainCmd, secondaryCmd, runCmd)
	for _, c := range []*cobra.Command{mainCmd, secondaryCmd, runCmd} {
		c.Flags().String("store", "", "image store URL, or \"auto\" to discover it (overrides [display] store_url)")
	}
	mainCmd.Flags().String("monitor", "", "monitor selector (overrides [kiosk] main_monitor)")
	secondaryCmd.Flags().String("monitor", "", "monitor selector (overrides [kiosk] secondary_monitor)")
}

var mainCmd = &cobra.Command{
	Use:   "main",
	Short: "Open the main display window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := kioskConfig(cmd)
		if v, _ := cmd.Flags().GetString("monitor"); v != "" {
			cfg.Kiosk.MainMonitor = v
		}
		ctx, cancel := signalContext()
		defer cancel()
		k, err := buildKiosk(ctx, cfg, true, false)
		if err != nil {
			return err
		}
		defer k.close()
		return kiosk.Run(ctx, k.mainWindow)
	},
}

var secondaryCmd = &cobra.Command{
	Use:   "secondary",
	Short: "Open the drawing window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := kioskConfig(cmd)
		if v, _ := cmd.Flags().GetString("monitor"); v != "" {
			cfg.Kiosk.SecondaryMonitor = v
		}
		ctx, cancel := signalContext()
		defer cancel()
		k, err := buildKiosk(ctx, cfg, false, true)
		if err != nil {
			return err
		}
		defer k.close()
		return kiosk.Run(ctx, k.secondaryWindow)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the image store and both windows in one process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := kioskConfig(cmd)
		ctx, cancel := signalContext()
		defer cancel()

		srv, err := newStoreServer(cfg, newNotifier(cfg))
		if err != nil {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Serve(gctx, cfg.Server.Advertise) })

		k, err := buildKiosk(gctx, cfg, true, true)
		if err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
		runErr := kiosk.Run(gctx, k.mainWindow, k.secondaryWindow)
		cancel()
		k.close()
		return errors.Join(runErr, g.Wait())
	},
}

func kioskConfig(cmd *cobra.Command) *config.Config {
	cfg := loadConfig()
	setupLogging(cfg)
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Display.StoreURL = v
	}
	return cfg
}

// kioskParts holds the windows a command opens and the shared plumbing
// behind them. Only the windows asked for are built, so a secondary-only
// process never consumes the main display's hand-off messages.
type kioskParts struct {
	mainWindow      kiosk.Window
	secondaryWindow kiosk.Window
	closers         []func()
}

func (k *kioskParts) close() {
	for i := len(k.closers) - 1; i >= 0; i-- {
		k.closers[i]()
	}
	k.closers = nil
}

func buildKiosk(ctx context.Context, cfg *config.Config, withMain, withSecondary bool) (*kioskParts, error) {
	storeURL := resolveStoreURL(ctx, cfg)
	client := store.NewClient(storeURL)
	waitHealthy(ctx, client, 3*time.Second)

	ch := openChannel(cfg, storeURL)
	chain, closeCache := openCache(cfg)
	fallback := image.Pt(cfg.Kiosk.Width, cfg.Kiosk.Height)
	parts := &kioskParts{closers: []func(){closeCache}}

	if withSecondary {
		starts, err := assets.StartImages()
		if err != nil {
			parts.close()
			return nil, fmt.Errorf("start images: %w", err)
		}
		sess := newSession(cfg, ch, chain, client)
		view := kiosk.NewSecondaryView(sess, starts, clock.Real{})
		parts.closers = append(parts.closers, func() {
			view.Close()
			sess.Close()
			sess.Wait()
		})
		parts.secondaryWindow = kiosk.Window{
			View:      view,
			Placement: screens.Placement(cfg.Kiosk.SecondaryMonitor, fallback),
		}
	}

	if withMain {
		disp := newDisplay(cfg, ch, chain, client)
		view := kiosk.NewMainView(disp, client, newNotifier(cfg), clipboard.WriteImage)
		if err := disp.Start(ctx); err != nil {
			parts.close()
			return nil, fmt.Errorf("start display: %w", err)
		}
		parts.closers = append(parts.closers, disp.Stop)
		parts.mainWindow = kiosk.Window{
			View:      view,
			Placement: screens.Placement(cfg.Kiosk.MainMonitor, fallback),
		}
	}

	slog.Info("kiosk ready", "store", storeURL, "transport", cfg.Channel.Transport, "main", withMain, "secondary", withSecondary)
	return parts, nil
}

// waitHealthy polls the store's health endpoint until it answers or the
// timeout passes. The kiosk runs either way.
func waitHealthy(ctx context.Context, client *store.Client, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		ts, err := client.Health(hctx)
		cancel()
		if err == nil {
			slog.Debug("image store healthy", "url", client.BaseURL(), "time", ts)
			return
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			slog.Warn("image store not reachable", "url", client.BaseURL(), "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
}
