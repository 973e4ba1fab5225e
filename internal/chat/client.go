package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxFrameSize = 4096
	sendBuffer   = 64
)

// inbound is the frame a connected client sends to post a message.
type inbound struct {
	Content string `json:"content"`
}

// Client is one websocket connection bound to a room.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomID   string
	userID   string
	username string

	send      chan Frame
	closeOnce sync.Once
}

// NewClient wraps an upgraded websocket connection for the given room and user.
func NewClient(hub *Hub, conn *websocket.Conn, roomID, userID, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomID:   roomID,
		userID:   userID,
		username: username,
		send:     make(chan Frame, sendBuffer),
	}
}

// enqueue hands a frame to the write pump. It reports false when the client's
// buffer is full or the client is closed.
func (c *Client) enqueue(frame Frame) bool {
	defer func() {
		// Sending on a channel closed by a concurrent teardown panics; treat
		// that the same as a full buffer.
		_ = recover()
	}()

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Run drives the read and write pumps until the connection drops, then leaves
// the room. It blocks until the client disconnects.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
	c.hub.Leave(c)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in inbound
		if err := json.Unmarshal(payload, &in); err != nil {
			c.hub.logger.Warn("malformed chat frame", "roomId", c.roomID, "userId", c.userID, "error", err)
			continue
		}

		if _, err := c.hub.Post(ctx, c.roomID, c.userID, c.username, in.Content); err != nil {
			if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMessageTooLong) {
				continue
			}
			c.hub.logger.Error("post chat message", "roomId", c.roomID, "userId", c.userID, "error", err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
