package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one gateway socket. WriteFrame is safe for concurrent use;
// ReadFrame has a single caller at a time.
type Conn interface {
	// ReadFrame returns the next text frame. A positive timeout bounds the
	// wait.
	ReadFrame(timeout time.Duration) ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	ID() string
}

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context, gatewayURL string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket using session transport
// settings.
type WebsocketDialer struct {
	cfg session.Config
}

func NewWebsocketDialer(cfg session.Config) *WebsocketDialer {
	return &WebsocketDialer{cfg: cfg.WithDefaults()}
}

func (d *WebsocketDialer) Dial(ctx context.Context, gatewayURL string) (Conn, error) {
	if err := d.cfg.ValidateClientTransport(gatewayURL); err != nil {
		return nil, err
	}
	tlsCfg, err := d.cfg.ClientTLSConfig()
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.ConnectTimeout,
		TLSClientConfig:  tlsCfg,
	}
	ws, resp, err := dialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: status=%d: %v", ErrDial, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDial, err)
	}
	ws.SetReadLimit(d.cfg.MaxMessageSize)
	return &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: d.cfg.WriteTimeout,
	}, nil
}

type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) ReadFrame(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Binary frames would need zlib transport compression, which is
		// never requested.
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame when possible, then drops the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func isCloseError(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}
