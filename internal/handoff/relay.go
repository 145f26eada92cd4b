package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Relay is the client side of the websocket transport, used when the two
// screens do not share a file system.
type Relay struct {
	url    string
	dialer *websocket.Dialer
	retry  time.Duration
}

// NewRelay returns a relay client for a hub at rawURL (ws:// or wss://).
func NewRelay(rawURL string) *Relay {
	return &Relay{url: rawURL, dialer: websocket.DefaultDialer, retry: 2 * time.Second}
}

func (r *Relay) endpoint(role string) (string, error) {
	u, err := url.Parse(r.url)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	if role != "" {
		q := u.Query()
		q.Set("role", role)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Publish implements Channel.
func (r *Relay) Publish(ctx context.Context, m Message) error {
	endpoint, err := r.endpoint("")
	if err != nil {
		return err
	}
	conn, _, err := r.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(Frame{Op: opPublish, Message: &m}); err != nil {
		return fmt.Errorf("publish to relay: %w", err)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	return nil
}

// Observe implements Channel. Connecting happens in the background: a hub
// that is down at attach or drops later is redialled every retry interval
// until ctx ends or stop is called.
func (r *Relay) Observe(ctx context.Context, fn func(Message)) (func(), error) {
	endpoint, err := r.endpoint("observe")
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	deliver := deliverOnce(fn)
	var (
		connMu  sync.Mutex
		current *websocket.Conn
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		failing := false
		for {
			conn, _, err := r.dialer.DialContext(ctx, endpoint, nil)
			switch {
			case ctx.Err() != nil:
				if conn != nil {
					conn.Close()
				}
				return
			case err != nil:
				if !failing {
					slog.Warn("relay unavailable, retrying", "url", endpoint, "every", r.retry, "error", err)
				}
				failing = true
			default:
				if failing {
					slog.Info("relay connected", "url", endpoint)
				}
				failing = false
				connMu.Lock()
				if ctx.Err() != nil {
					connMu.Unlock()
					conn.Close()
					return
				}
				current = conn
				connMu.Unlock()
				r.readLoop(conn, deliver)
				connMu.Lock()
				current = nil
				connMu.Unlock()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retry):
			}
		}
	}()
	context.AfterFunc(ctx, func() {
		connMu.Lock()
		if current != nil {
			current.Close()
		}
		connMu.Unlock()
	})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

func (r *Relay) readLoop(conn *websocket.Conn, deliver func(Message)) {
	defer conn.Close()
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Op != opDeliver || f.Message == nil {
			continue
		}
		m := *f.Message
		if err := m.validate(); err != nil {
			slog.Warn("discarding malformed hand-off message", "transport", "relay", "error", err)
			_ = conn.WriteJSON(Frame{Op: opAck, ID: m.ID})
			continue
		}
		deliver(m)
		if err := conn.WriteJSON(Frame{Op: opAck, ID: m.ID}); err != nil {
			return
		}
	}
}
