package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/doodlekiosk/internal/export"
	"github.com/example/doodlekiosk/internal/store"
)

func init() {
	rootCmd.AddCommand(imagesCmd)
	imagesCmd.AddCommand(imagesListCmd, imagesUploadCmd, imagesExportCmd, imagesPruneCmd)
	imagesCmd.PersistentFlags().String("store", "", "image store URL (overrides [display] store_url)")
	imagesExportCmd.Flags().StringP("output", "o", "showcase.pdf", "PDF file to write")
	imagesExportCmd.Flags().String("title", "", "page heading")
	imagesExportCmd.Flags().Int("columns", 2, "images per row")
	imagesExportCmd.Flags().Int("rows", 3, "rows per page")
	imagesExportCmd.Flags().Bool("local", false, "read the upload directory directly instead of the HTTP API")
	imagesPruneCmd.Flags().Duration("older-than", 0, "remove images older than this (defaults to [server] retention)")
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Work with the image store",
}

func storeClient(cmd *cobra.Command) (*store.Client, context.Context, context.CancelFunc) {
	cfg := loadConfig()
	setupLogging(cfg)
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Display.StoreURL = v
	}
	ctx, cancel := signalContext()
	return store.NewClient(resolveStoreURL(ctx, cfg)), ctx, cancel
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, cancel := storeClient(cmd)
		defer cancel()
		images, err := client.List(ctx)
		if err != nil {
			return fmt.Errorf("list images: %w", err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, img := range images {
			fmt.Fprintf(tw, "%s\t%s\n", img.Filename, img.URL)
		}
		return tw.Flush()
	},
}

var imagesUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload image files to the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ctx, cancel := storeClient(cmd)
		defer cancel()
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
			stored, err := client.Upload(ctx, filepath.Base(path), mimeType, data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", path, stored.Filename, stored.Size)
		}
		return nil
	},
}

var imagesExportCmd = &cobra.Command{
	Use:   "export-pdf",
	Short: "Write a PDF contact sheet of the stored images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		title, _ := cmd.Flags().GetString("title")
		columns, _ := cmd.Flags().GetInt("columns")
		rows, _ := cmd.Flags().GetInt("rows")
		local, _ := cmd.Flags().GetBool("local")

		var entries []export.Entry
		var err error
		if local {
			entries, err = localEntries()
		} else {
			entries, err = remoteEntries(cmd)
		}
		if err != nil {
			return err
		}
		placed, skipped, err := export.ContactSheetFile(output, entries, export.Layout{Columns: columns, Rows: rows, Title: title})
		if err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d images, %d skipped\n", output, placed, skipped)
		return nil
	},
}

func localEntries() ([]export.Entry, error) {
	cfg := loadConfig()
	setupLogging(cfg)
	st, err := store.Open(cfg.Server.StoreDir)
	if err != nil {
		return nil, err
	}
	images, err := st.List(cfg.Server.PublicURL)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(images))
	for i, img := range images {
		paths[i] = img.Path
	}
	return export.LoadEntries(paths)
}

func remoteEntries(cmd *cobra.Command) ([]export.Entry, error) {
	client, ctx, cancel := storeClient(cmd)
	defer cancel()
	images, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	entries := make([]export.Entry, 0, len(images))
	for _, img := range images {
		data, err := client.Fetch(ctx, img.URL)
		if err != nil {
			slog.Warn("skip image", "url", img.URL, "error", err)
			continue
		}
		entries = append(entries, export.Entry{Name: img.Filename, Data: data})
	}
	return entries, nil
}

var imagesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old images from the local upload directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			age = cfg.Server.Retention
		}
		if age <= 0 {
			return fmt.Errorf("no age given and [server] retention is disabled")
		}
		st, err := store.Open(cfg.Server.StoreDir)
		if err != nil {
			return err
		}
		n, err := st.Prune(time.Now().Add(-age))
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d images\n", n)
		return err
	},
}
