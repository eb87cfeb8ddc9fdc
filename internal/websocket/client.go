package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bizinsight-be/internal/dto"
	"bizinsight-be/internal/pkg/serverutils"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Frame types written by the chat socket.
const (
	FrameChatChunk = "chat.chunk"
	FrameChatError = "chat.error"
)

// ChatFunc runs one chat turn.
type ChatFunc func(ctx context.Context, userId uuid.UUID, req *dto.ChatRequest) <-chan dto.ChatStreamChunk

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	UserID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	chat ChatFunc

	done     chan struct{}
	doneOnce sync.Once
	turns    sync.WaitGroup
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, chat ChatFunc) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
		chat:   chat,
		done:   make(chan struct{}),
	}
}

func (c *Client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// send waits for buffer space so chat chunks are never dropped.
func (c *Client) send(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	}
}

// trySend is used for server-initiated events, which may be dropped for slow readers.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Client) sendFrame(frameType string, data interface{}) bool {
	payload, err := json.Marshal(Frame{Type: frameType, Data: data})
	if err != nil {
		return false
	}
	return c.send(payload)
}

// readPump reads chat requests until the peer goes away. Each request runs as its own
// turn; turns still running when the socket closes are cancelled.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.close()
		c.turns.Wait()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("HUB", "Socket closed unexpectedly", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			return
		}

		var req dto.ChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendFrame(FrameChatError, map[string]string{"message": "Invalid request body"})
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			c.sendFrame(FrameChatError, map[string]string{"message": err.Error()})
			continue
		}

		c.turns.Add(1)
		go func() {
			defer c.turns.Done()
			for chunk := range c.chat(ctx, c.UserID, &req) {
				if !c.sendFrame(FrameChatChunk, chunk) {
					cancel()
				}
			}
		}()
	}
}

// writePump pumps messages from Send to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
