package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"groundlink/internal/events"
)

// ErrSendQueueFull reports an observer whose outbound queue filled up. The
// broadcaster treats it like any other delivery failure and drops the
// connection instead of blocking.
var ErrSendQueueFull = errors.New("observer send queue full")

// conn adapts one websocket connection to events.Connection. Writes go
// through a buffered channel drained by writePump; Send never blocks.
type conn struct {
	id     string
	ws     *websocket.Conn
	sendCh chan events.Envelope

	pingInterval time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}

	mu       sync.Mutex
	deviceID string
}

func newConn(id string, ws *websocket.Conn, buffer int, pingInterval, writeTimeout time.Duration) *conn {
	return &conn{
		id:           id,
		ws:           ws,
		sendCh:       make(chan events.Envelope, buffer),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send enqueues an envelope for the writer goroutine. A closed connection or
// a full queue returns an error so the registry can prune this observer.
func (c *conn) Send(envelope events.Envelope) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.sendCh <- envelope:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

func (c *conn) setDeviceID(id string) {
	c.mu.Lock()
	c.deviceID = id
	c.mu.Unlock()
}

func (c *conn) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// writePump serializes all frame writes on this connection: queued envelopes
// and keepalive pings. It exits when the connection closes.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case envelope := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteJSON(envelope); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
