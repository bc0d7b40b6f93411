package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens a duplex connection to the backend. Implementations carry no
// policy; reconnect and retry decisions belong to the Session.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one physical duplex connection. Read blocks until the next text
// frame arrives; any returned error means the connection is dead and must be
// replaced. Write and Close are safe for concurrent use.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

const defaultReadLimit = 1 << 20 // 1MB

// WSDialer dials gorilla/websocket connections.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	// Answer server pings so intermediaries do not time the link out.
	conn.SetPingHandler(func(appData string) error {
		deadline := time.Now().Add(d.writeTimeout())
		return conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
	})

	return &wsConn{conn: conn, writeTimeout: d.writeTimeout()}, nil
}

func (d *WSDialer) writeTimeout() time.Duration {
	if d.WriteTimeout > 0 {
		return d.WriteTimeout
	}
	return 10 * time.Second
}

// wsConn serializes writes; gorilla/websocket supports one concurrent writer.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
