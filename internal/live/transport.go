package live

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/websocket"
)

// ErrUnsupported is returned by a Dialer that cannot provide a duplex
// transport. The channel falls back to polling.
var ErrUnsupported = errors.New("duplex transport unsupported")

// Endpoint is the well-known live update path.
const Endpoint = "/ws/live-updates"

// Conn is an open duplex connection.
type Conn interface {
	// Receive blocks until the next message. It returns io.EOF after a
	// clean close.
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

// SocketURL derives the live endpoint from a page base URL: https maps to
// wss and http to ws.
func SocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = Endpoint
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// WebSocketDialer dials with golang.org/x/net/websocket.
type WebSocketDialer struct {
	// Origin is sent as the Origin header.
	Origin string
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	// A socket that cannot even be configured is treated like a missing
	// transport: the channel polls instead of retrying forever.
	cfg, err := websocket.NewConfig(rawURL, d.Origin)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket config: %v", ErrUnsupported, err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Receive() ([]byte, error) {
	var msg string
	if err := websocket.Message.Receive(c.conn, &msg); err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
