package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestEntryURL(t *testing.T) {
	cases := []struct {
		entry *mdns.ServiceEntry
		want  string
	}{
		{nil, ""},
		{&mdns.ServiceEntry{AddrV4: net.IPv4(192, 168, 1, 20), Port: 5260}, "http://192.168.1.20:5260"},
		{&mdns.ServiceEntry{AddrV6: net.ParseIP("fe80::1"), Port: 80}, "http://[fe80::1]:80"},
		{&mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 1)}, ""},
		{&mdns.ServiceEntry{Port: 5260}, ""},
	}
	for _, tc := range cases {
		if got := entryURL(tc.entry); got != tc.want {
			t.Errorf("entryURL(%+v) = %q, want %q", tc.entry, got, tc.want)
		}
	}
}

func TestResolvePrefersConfigured(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Resolve(ctx, "http://store:1", "http://fallback", time.Millisecond); got != "http://store:1" {
		t.Fatalf("expected configured url, got %q", got)
	}
	if got := Resolve(ctx, "", "http://fallback", time.Millisecond); got != "http://fallback" {
		t.Fatalf("expected fallback on cancelled browse, got %q", got)
	}
}
