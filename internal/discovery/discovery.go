// Package discovery advertises the image store over mDNS and lets the
// kiosk windows find it when no store URL is configured.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service the store registers.
const ServiceType = "_doodlekiosk._tcp"

// ErrNotFound is returned when no store answers within the browse timeout.
var ErrNotFound = errors.New("no image store found on the local network")

// Advertise registers the store on port under the host name. Shutdown the
// returned server to withdraw it.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, []string{"doodlekiosk", "path=/getImages"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	slog.Info("advertising image store", "service", ServiceType, "host", host, "port", port)
	return server, nil
}

// Browse queries the local network and returns the base URL of the first
// store that answers.
func Browse(ctx context.Context, timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	go func() {
		for e := range entries {
			if u := entryURL(e); u != "" {
				select {
				case found <- u:
				default:
				}
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	errc := make(chan error, 1)
	go func() {
		errc <- mdns.Query(params)
		close(entries)
	}()

	select {
	case u := <-found:
		return u, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errc:
		select {
		case u := <-found:
			return u, nil
		default:
		}
		if err != nil {
			return "", fmt.Errorf("mdns query: %w", err)
		}
		return "", ErrNotFound
	}
}

// Resolve returns configured when set, otherwise browses for a store and
// falls back to fallback when none answers.
func Resolve(ctx context.Context, configured, fallback string, timeout time.Duration) string {
	if configured != "" {
		return configured
	}
	u, err := Browse(ctx, timeout)
	if err != nil {
		slog.Warn("store discovery failed, using fallback", "fallback", fallback, "error", err)
		return fallback
	}
	slog.Info("discovered image store", "url", u)
	return u
}

func entryURL(e *mdns.ServiceEntry) string {
	if e == nil || e.Port == 0 {
		return ""
	}
	var ip net.IP
	switch {
	case e.AddrV4 != nil:
		ip = e.AddrV4
	case e.AddrV6 != nil:
		ip = e.AddrV6
	default:
		return ""
	}
	return "http://" + net.JoinHostPort(ip.String(), strconv.Itoa(e.Port))
}
