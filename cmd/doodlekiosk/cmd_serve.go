package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides [server] addr)")
	serveCmd.Flags().String("dir", "", "upload directory (overrides [server] store_dir)")
	serveCmd.Flags().Bool("no-advertise", false, "do not advertise the store over mDNS")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the image store HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("dir"); v != "" {
		cfg.Server.StoreDir = v
	}
	advertise := cfg.Server.Advertise
	if off, _ := cmd.Flags().GetBool("no-advertise"); off {
		advertise = false
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv, err := newStoreServer(cfg, newNotifier(cfg))
	if err != nil {
		return err
	}
	slog.Info("doodlekiosk store starting",
		"version", version,
		"addr", cfg.Server.Addr,
		"public_url", cfg.Server.PublicURL,
		"retention", cfg.Server.Retention,
		"advertise", advertise,
	)
	return srv.Serve(ctx, advertise)
}
