package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/doodlekiosk/internal/palette"
)

// DefaultPort is the image store's listening port.
const DefaultPort = 5260

// Server holds image store settings.
type Server struct {
	Addr           string
	PublicURL      string
	StoreDir       string
	MaxUploadBytes int64
	Retention      time.Duration
	PruneSchedule  string
	Advertise      bool
}

// Kiosk holds the secondary (drawing) screen settings.
type Kiosk struct {
	MainMonitor      string
	SecondaryMonitor string
	Width            int
	Height           int
	StepTimeout      time.Duration
	JPEGQuality      int
	BrushColor       color.RGBA
	BrushWidth       int
	TemplateDir      string
}

// Display holds the main screen timings.
type Display struct {
	StoreURL         string
	CycleInterval    time.Duration
	CarouselInterval time.Duration
	Transition       time.Duration
	MessageDuration  time.Duration
	RefreshInterval  time.Duration
}

// Channel selects the hand-off transport between the two screens.
type Channel struct {
	Transport string
	Dir       string
	RelayURL  string
}

// Cache configures the local drawing cache tiers.
type Cache struct {
	Path string
	Dir  string
}

// Notify holds notification settings.
type Notify struct {
	Stored   bool
	Received bool
	Copied   bool
}

// Config holds the application configuration.
type Config struct {
	LogLevel string
	DataDir  string
	Palette  string

	Server  Server
	Kiosk   Kiosk
	Display Display
	Channel Channel
	Cache   Cache
	Notify  Notify
}

// New creates a new Config with defaults.
func New() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "doodlekiosk")
	return &Config{
		LogLevel: "info",
		DataDir:  dataDir,
		Server: Server{
			Addr:           fmt.Sprintf(":%d", DefaultPort),
			PublicURL:      fmt.Sprintf("http://localhost:%d", DefaultPort),
			StoreDir:       filepath.Join(dataDir, "uploads"),
			MaxUploadBytes: 10 << 20,
			PruneSchedule:  "@hourly",
		},
		Kiosk: Kiosk{
			MainMonitor:      "primary",
			SecondaryMonitor: "#1",
			Width:            1920,
			Height:           1080,
			StepTimeout:      60 * time.Second,
			JPEGQuality:      70,
			BrushColor:       color.RGBA{0, 0, 0, 255},
			BrushWidth:       3,
		},
		Display: Display{
			StoreURL:         fmt.Sprintf("http://localhost:%d", DefaultPort),
			CycleInterval:    5 * time.Second,
			CarouselInterval: 5 * time.Second,
			Transition:       time.Second,
			MessageDuration:  3 * time.Second,
			RefreshInterval:  30 * time.Second,
		},
		Channel: Channel{
			Transport: "file",
			Dir:       filepath.Join(dataDir, "channel"),
		},
		Cache: Cache{
			Path: filepath.Join(dataDir, "cache.db"),
			Dir:  filepath.Join(dataDir, "cache"),
		},
	}
}

// ApplyEnv overrides fields from DOODLEKIOSK_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("DOODLEKIOSK_STORE_URL")); v != "" {
		c.Display.StoreURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DOODLEKIOSK_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("DOODLEKIOSK_RELAY_URL")); v != "" {
		c.Channel.RelayURL = v
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "log_level = %s\n", c.LogLevel)
	if c.DataDir != "" {
		fmt.Fprintf(&sb, "data_dir = %s\n", c.DataDir)
	}
	if c.Palette != "" {
		fmt.Fprintf(&sb, "palette = %s\n", c.Palette)
	}
	sb.WriteString("\n")

	sb.WriteString("[server]\n")
	fmt.Fprintf(&sb, "addr = %s\n", c.Server.Addr)
	fmt.Fprintf(&sb, "public_url = %s\n", c.Server.PublicURL)
	fmt.Fprintf(&sb, "store_dir = %s\n", c.Server.StoreDir)
	fmt.Fprintf(&sb, "max_upload_bytes = %d\n", c.Server.MaxUploadBytes)
	fmt.Fprintf(&sb, "retention = %s\n", c.Server.Retention)
	fmt.Fprintf(&sb, "prune_schedule = %s\n", c.Server.PruneSchedule)
	fmt.Fprintf(&sb, "advertise = %v\n", c.Server.Advertise)
	sb.WriteString("\n")

	sb.WriteString("[kiosk]\n")
	fmt.Fprintf(&sb, "main_monitor = %s\n", c.Kiosk.MainMonitor)
	fmt.Fprintf(&sb, "secondary_monitor = %s\n", c.Kiosk.SecondaryMonitor)
	fmt.Fprintf(&sb, "width = %d\n", c.Kiosk.Width)
	fmt.Fprintf(&sb, "height = %d\n", c.Kiosk.Height)
	fmt.Fprintf(&sb, "step_timeout = %s\n", c.Kiosk.StepTimeout)
	fmt.Fprintf(&sb, "jpeg_quality = %d\n", c.Kiosk.JPEGQuality)
	fmt.Fprintf(&sb, "brush_color = %s\n", palette.Hex(c.Kiosk.BrushColor))
	fmt.Fprintf(&sb, "brush_width = %d\n", c.Kiosk.BrushWidth)
	if c.Kiosk.TemplateDir != "" {
		fmt.Fprintf(&sb, "template_dir = %s\n", c.Kiosk.TemplateDir)
	}
	sb.WriteString("\n")

	sb.WriteString("[display]\n")
	fmt.Fprintf(&sb, "store_url = %s\n", c.Display.StoreURL)
	fmt.Fprintf(&sb, "cycle_interval = %s\n", c.Display.CycleInterval)
	fmt.Fprintf(&sb, "carousel_interval = %s\n", c.Display.CarouselInterval)
	fmt.Fprintf(&sb, "transition = %s\n", c.Display.Transition)
	fmt.Fprintf(&sb, "message_duration = %s\n", c.Display.MessageDuration)
	fmt.Fprintf(&sb, "refresh_interval = %s\n", c.Display.RefreshInterval)
	sb.WriteString("\n")

	sb.WriteString("[channel]\n")
	fmt.Fprintf(&sb, "transport = %s\n", c.Channel.Transport)
	fmt.Fprintf(&sb, "dir = %s\n", c.Channel.Dir)
	if c.Channel.RelayURL != "" {
		fmt.Fprintf(&sb, "relay_url = %s\n", c.Channel.RelayURL)
	}
	sb.WriteString("\n")

	sb.WriteString("[cache]\n")
	fmt.Fprintf(&sb, "path = %s\n", c.Cache.Path)
	fmt.Fprintf(&sb, "dir = %s\n", c.Cache.Dir)
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "stored = %v\n", c.Notify.Stored)
	fmt.Fprintf(&sb, "received = %v\n", c.Notify.Received)
	fmt.Fprintf(&sb, "copied = %v\n", c.Notify.Copied)

	return sb.String()
}

// Save writes the configuration to path, replacing any existing file
// atomically.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(c.String()), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
