// Package ws is the live feed transport: a websocket client that hands
// every text frame to a sink and reconnects with backoff.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Sink consumes raw frames. *state.Store implements it.
type Sink interface {
	Apply(raw []byte) error
}

// Config configures a Client.
type Config struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the silence between frames; zero disables it.
	ReadTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Client reads the feed.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	lastErr   string

	frames   atomic.Uint64
	connects atomic.Uint64
}

// NewClient creates a client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 5 * time.Second
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Run connects and feeds sink until ctx ends, reconnecting after errors.
// It returns ctx.Err().
func (c *Client) Run(ctx context.Context, sink Sink) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("ws: no feed URL")
	}
	backoff := c.cfg.MinBackoff
	for {
		err := c.connectAndReadLoop(ctx, sink)
		c.setConnected(false, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("feed disconnected", "url", c.cfg.URL, "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < c.cfg.MaxBackoff {
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}
		if err == nil {
			backoff = c.cfg.MinBackoff
		}
	}
}

func (c *Client) connectAndReadLoop(ctx context.Context, sink Sink) error {
	d := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := d.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}
	defer conn.Close()

	c.connects.Add(1)
	c.setConnected(true, nil)
	c.logger.Info("feed connected", "url", c.cfg.URL)

	// Unblock ReadMessage when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		})
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.frames.Add(1)
		// The sink logs rejected frames itself
		_ = sink.Apply(msg)
	}
}

func (c *Client) setConnected(v bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
	if err != nil && !errors.Is(err, context.Canceled) {
		c.lastErr = err.Error()
	}
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// LastError is the most recent connection error, if any.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Frames counts text frames delivered to the sink.
func (c *Client) Frames() uint64 { return c.frames.Load() }

// Connects counts successful connections.
func (c *Client) Connects() uint64 { return c.connects.Load() }
