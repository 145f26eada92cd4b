package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/doodlekiosk/internal/palette"
)

// Parse reads configuration from an io.Reader. Missing keys keep their
// defaults; unknown keys and sections are ignored.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var currentSection string
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}

		// Parse Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") && len(value) >= 2 {
			value = value[1 : len(value)-1]
		}

		var err error
		switch currentSection {
		case "":
			err = setRootField(cfg, key, value)
		case "server":
			err = setServerField(&cfg.Server, key, value)
		case "kiosk":
			err = setKioskField(&cfg.Kiosk, key, value)
		case "display":
			err = setDisplayField(&cfg.Display, key, value)
		case "channel":
			err = setChannelField(&cfg.Channel, key, value)
		case "cache":
			err = setCacheField(&cfg.Cache, key, value)
		case "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		}
		if err != nil {
			if currentSection == "" {
				return nil, fmt.Errorf("line %d: error in root section: %w", lineNo, err)
			}
			return nil, fmt.Errorf("line %d: error in section [%s]: %w", lineNo, currentSection, err)
		}
	}

	return cfg, scanner.Err()
}

func setRootField(cfg *Config, key, value string) error {
	switch key {
	case "log_level":
		cfg.LogLevel = value
	case "data_dir":
		cfg.DataDir = value
	case "palette":
		cfg.Palette = value
	}
	return nil
}

func setServerField(s *Server, key, value string) error {
	var err error
	switch key {
	case "addr":
		s.Addr = value
	case "public_url":
		s.PublicURL = strings.TrimSuffix(value, "/")
	case "store_dir":
		s.StoreDir = value
	case "max_upload_bytes":
		s.MaxUploadBytes, err = strconv.ParseInt(value, 10, 64)
	case "retention":
		s.Retention, err = parseDuration(value)
	case "prune_schedule":
		s.PruneSchedule = value
	case "advertise":
		s.Advertise, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("invalid value for key %s: %w", key, err)
	}
	return nil
}

func setKioskField(k *Kiosk, key, value string) error {
	var err error
	switch key {
	case "main_monitor":
		k.MainMonitor = value
	case "secondary_monitor":
		k.SecondaryMonitor = value
	case "width":
		k.Width, err = strconv.Atoi(value)
	case "height":
		k.Height, err = strconv.Atoi(value)
	case "step_timeout":
		k.StepTimeout, err = parseDuration(value)
	case "jpeg_quality":
		k.JPEGQuality, err = strconv.Atoi(value)
		if err == nil && (k.JPEGQuality < 1 || k.JPEGQuality > 100) {
			err = fmt.Errorf("quality %d outside 1-100", k.JPEGQuality)
		}
	case "brush_color":
		k.BrushColor, err = palette.ParseColor(value)
	case "brush_width":
		k.BrushWidth, err = strconv.Atoi(value)
	case "template_dir":
		k.TemplateDir = value
	}
	if err != nil {
		return fmt.Errorf("invalid value for key %s: %w", key, err)
	}
	return nil
}

func setDisplayField(d *Display, key, value string) error {
	var err error
	switch key {
	case "store_url":
		d.StoreURL = strings.TrimSuffix(value, "/")
	case "cycle_interval":
		d.CycleInterval, err = parseDuration(value)
	case "carousel_interval":
		d.CarouselInterval, err = parseDuration(value)
	case "transition":
		d.Transition, err = parseDuration(value)
	case "message_duration":
		d.MessageDuration, err = parseDuration(value)
	case "refresh_interval":
		d.RefreshInterval, err = parseDuration(value)
	}
	if err != nil {
		return fmt.Errorf("invalid value for key %s: %w", key, err)
	}
	return nil
}

func setChannelField(c *Channel, key, value string) error {
	switch key {
	case "transport":
		switch strings.ToLower(value) {
		case "file", "memory", "relay":
			c.Transport = strings.ToLower(value)
		default:
			return fmt.Errorf("unknown transport %q", value)
		}
	case "dir":
		c.Dir = value
	case "relay_url":
		c.RelayURL = value
	}
	return nil
}

func setCacheField(c *Cache, key, value string) error {
	switch key {
	case "path":
		c.Path = value
	case "dir":
		c.Dir = value
	}
	return nil
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	switch key {
	case "stored":
		n.Stored = b
	case "received":
		n.Received = b
	case "copied":
		n.Copied = b
	}
	return nil
}

// parseDuration accepts Go duration strings or a bare number of seconds.
func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}
