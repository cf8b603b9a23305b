package connection

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a live websocket connection with an ordered outbound queue.
// Writes to the socket happen only in WritePump.
type Client struct {
	Id string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.RWMutex
	roomId      string
	displayName string
}

func NewClient(id string, conn *websocket.Conn, queueSize int) *Client {
	return &Client{
		Id:   id,
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Enqueue schedules a frame for writing. It never blocks and reports false when the
// queue is full or the client is closed.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Outbound() <-chan []byte {
	return c.send
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) Room() (roomId, displayName string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.roomId, c.displayName
}

func (c *Client) SetRoom(roomId, displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roomId = roomId
	c.displayName = displayName
}

// WritePump drains the outbound queue to the socket and keeps the connection alive with pings.
// It returns when the client is closed, ctx is done or a write fails.
func (c *Client) WritePump(ctx context.Context, pingInterval, writeTimeout time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return nil
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}
